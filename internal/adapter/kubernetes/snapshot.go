package kubernetes

import (
	"context"
	"log/slog"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const labelControlPlane = "devspace.chiwei/control-plane"

// Per-category keys recorded in Snapshot.Categories.
const (
	categoryWorkloads    = "workloads"
	categoryServices     = "services"
	categoryConfigs      = "configs"
	categoryControlPlane = "control-plane"
)

// ExportSnapshot lists all control-plane and per-project objects into one
// point-in-time structure keyed by shortName. Each resource category is
// listed independently: a failed listing is recorded and logged but never
// blocks the other categories. Secret-bearing configuration keys are replaced
// by the redaction marker before anything leaves this method.
func (r *Reconciler) ExportSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		Timestamp:  time.Now(),
		Cluster:    domain.ClusterInfo{Namespace: r.cfg.Namespace},
		Projects:   make(map[string]*domain.ProjectObjects),
		Categories: make(map[string]bool),
	}

	if v, err := r.client.Discovery().ServerVersion(); err == nil {
		snap.Cluster.ServerVersion = v.GitVersion
	}

	projectOpts := metav1.ListOptions{LabelSelector: labelProject}

	if list, err := r.client.AppsV1().StatefulSets(r.cfg.Namespace).List(ctx, projectOpts); err != nil {
		slog.Error("snapshot: listing workloads failed", "error", err)
		snap.Categories[categoryWorkloads] = false
	} else {
		snap.Categories[categoryWorkloads] = true
		for i := range list.Items {
			sts := list.Items[i]
			if short := sts.Labels[labelProject]; short != "" {
				snap.ProjectObjects(short).Workload = &list.Items[i]
			}
		}
	}

	if list, err := r.client.CoreV1().Services(r.cfg.Namespace).List(ctx, projectOpts); err != nil {
		slog.Error("snapshot: listing services failed", "error", err)
		snap.Categories[categoryServices] = false
	} else {
		snap.Categories[categoryServices] = true
		for i := range list.Items {
			svc := list.Items[i]
			if short := svc.Labels[labelProject]; short != "" {
				snap.ProjectObjects(short).Service = &list.Items[i]
			}
		}
	}

	if list, err := r.client.CoreV1().ConfigMaps(r.cfg.Namespace).List(ctx, projectOpts); err != nil {
		slog.Error("snapshot: listing configs failed", "error", err)
		snap.Categories[categoryConfigs] = false
	} else {
		snap.Categories[categoryConfigs] = true
		for i := range list.Items {
			cm := list.Items[i]
			short := cm.Labels[labelProject]
			if short == "" {
				continue
			}
			cm.Data = domain.RedactConfigData(cm.Data)
			snap.ProjectObjects(short).Config = &cm
		}
	}

	r.exportControlPlane(ctx, snap)
	return snap, nil
}

func (r *Reconciler) exportControlPlane(ctx context.Context, snap *domain.Snapshot) {
	opts := metav1.ListOptions{LabelSelector: labelControlPlane + "=true"}
	ok := true

	if list, err := r.client.AppsV1().Deployments(r.cfg.Namespace).List(ctx, opts); err != nil {
		slog.Error("snapshot: listing control-plane deployments failed", "error", err)
		ok = false
	} else {
		snap.ControlPlane.Deployments = list.Items
	}

	if list, err := r.client.CoreV1().Services(r.cfg.Namespace).List(ctx, opts); err != nil {
		slog.Error("snapshot: listing control-plane services failed", "error", err)
		ok = false
	} else {
		snap.ControlPlane.Services = list.Items
	}

	if list, err := r.client.CoreV1().ConfigMaps(r.cfg.Namespace).List(ctx, opts); err != nil {
		slog.Error("snapshot: listing control-plane configmaps failed", "error", err)
		ok = false
	} else {
		for i := range list.Items {
			list.Items[i].Data = domain.RedactConfigData(list.Items[i].Data)
		}
		snap.ControlPlane.ConfigMaps = list.Items
	}

	snap.Categories[categoryControlPlane] = ok
}
