package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var _ port.StateReconciler = (*Reconciler)(nil)

// stateMirrorName is the aggregate ConfigMap holding one redacted record per
// project. It speeds up diagnostics after a restart but is never treated as
// authoritative: authority flows from ReconcileAll.
const stateMirrorName = "devspace-state"

type ReconcilerConfig struct {
	Namespace     string
	ClusterDomain string
	BaseDomain    string
}

// Reconciler rebuilds the project directory from live cluster objects and
// maintains the redacted state mirror.
type Reconciler struct {
	client kubernetes.Interface
	cfg    ReconcilerConfig
}

func NewReconciler(client kubernetes.Interface, cfg ReconcilerConfig) *Reconciler {
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.ClusterDomain == "" {
		cfg.ClusterDomain = "cluster.local"
	}
	return &Reconciler{client: client, cfg: cfg}
}

// ReconcileAll lists every workload carrying the project label and rebuilds a
// full project record from the workload, its configuration object and its
// network object. A project missing either companion object is logged and
// skipped rather than failing the whole scan. Secret fields are never
// populated on reconstruction.
func (r *Reconciler) ReconcileAll(ctx context.Context) (map[string]*domain.Project, error) {
	stsList, err := r.client.AppsV1().StatefulSets(r.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelProject,
	})
	if err != nil {
		return nil, fmt.Errorf("list workloads: %w", translateErr(err))
	}

	directory := make(map[string]*domain.Project, len(stsList.Items))
	for i := range stsList.Items {
		sts := &stsList.Items[i]
		short := sts.Labels[labelProject]
		if short == "" {
			continue
		}

		cm, err := r.client.CoreV1().ConfigMaps(r.cfg.Namespace).Get(ctx, short+"-config", metav1.GetOptions{})
		if err != nil {
			slog.Warn("skipping project: config object unavailable", "project", short, "error", err)
			continue
		}
		if _, err := r.client.CoreV1().Services(r.cfg.Namespace).Get(ctx, short+"-service", metav1.GetOptions{}); err != nil {
			slog.Warn("skipping project: network object unavailable", "project", short, "error", err)
			continue
		}

		p := r.rebuildProject(short, cm.Data)
		p.CreatedAt = sts.CreationTimestamp.Time
		p.UpdatedAt = sts.CreationTimestamp.Time
		p.Deployment = deriveStatus(sts)
		p.Status = p.Deployment.Phase
		directory[p.ID] = p
	}

	slog.Info("reconciled project directory from cluster", "projects", len(directory))
	return directory, nil
}

// rebuildProject reconstructs a project record from configuration data.
// Secret keys are deliberately not read back.
func (r *Reconciler) rebuildProject(short string, data map[string]string) *domain.Project {
	id := data[configKeyProjectID]
	if id == "" {
		// Objects created out of band still get a stable directory entry.
		id = uuid.NewString()
		slog.Warn("config object carries no project id, assigned a new one", "project", short, "id", id)
	}

	var jiraKeys []string
	if raw := data[configKeyJiraKeys]; raw != "" {
		jiraKeys = strings.Split(raw, ",")
	}
	portBase, _ := strconv.Atoi(data[configKeyPortBase])

	return &domain.Project{
		ID:              id,
		ShortName:       short,
		DisplayName:     data[configKeyDisplayName],
		GitRepo:         data[configKeyGitRepo],
		GitAuth:         domain.GitAuthMethod(data[configKeyGitAuth]),
		GitCredential:   data[configKeyGitCred],
		JiraBaseURL:     data[configKeyJiraBaseURL],
		JiraProjectKeys: jiraKeys,
		PortBase:        portBase,
		URLs:            buildAccessURLs(short, r.cfg.Namespace, r.cfg.ClusterDomain, r.cfg.BaseDomain),
	}
}

// Persist writes a redacted serialization of the whole directory into the
// state mirror ConfigMap, one JSON document per project id.
func (r *Reconciler) Persist(ctx context.Context, directory map[string]*domain.Project) error {
	data := make(map[string]string, len(directory))
	for id, p := range directory {
		raw, err := json.Marshal(domain.RedactProject(p))
		if err != nil {
			return fmt.Errorf("marshal project %s: %w", p.ShortName, err)
		}
		data[id] = string(raw)
	}

	cms := r.client.CoreV1().ConfigMaps(r.cfg.Namespace)
	existing, err := cms.Get(ctx, stateMirrorName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = cms.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      stateMirrorName,
				Namespace: r.cfg.Namespace,
				Labels:    map[string]string{labelControlPlane: "true"},
			},
			Data: data,
		}, metav1.CreateOptions{})
		return translateErr(err)
	}
	if err != nil {
		return translateErr(err)
	}
	existing.Data = data
	_, err = cms.Update(ctx, existing, metav1.UpdateOptions{})
	return translateErr(err)
}

// Remove drops one project from the state mirror. A missing mirror is fine.
func (r *Reconciler) Remove(ctx context.Context, id string) error {
	cms := r.client.CoreV1().ConfigMaps(r.cfg.Namespace)
	existing, err := cms.Get(ctx, stateMirrorName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return translateErr(err)
	}
	if _, ok := existing.Data[id]; !ok {
		return nil
	}
	delete(existing.Data, id)
	_, err = cms.Update(ctx, existing, metav1.UpdateOptions{})
	return translateErr(err)
}

// TailLogs resolves the most recently started running pod of the project's
// workload and returns its tail. No pods means no data, not failure.
func (r *Reconciler) TailLogs(ctx context.Context, p *domain.Project, lines int64) (string, error) {
	pods, err := r.client.CoreV1().Pods(r.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", labelProject, p.ShortName),
	})
	if err != nil {
		return "", fmt.Errorf("list pods for %s: %w", p.ShortName, translateErr(err))
	}

	var newest *corev1.Pod
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}
		if newest == nil || pod.Status.StartTime != nil &&
			(newest.Status.StartTime == nil || newest.Status.StartTime.Before(pod.Status.StartTime)) {
			newest = pod
		}
	}
	if newest == nil {
		return "", nil
	}

	opts := &corev1.PodLogOptions{Container: containerName}
	if lines > 0 {
		opts.TailLines = &lines
	}
	stream, err := r.client.CoreV1().Pods(r.cfg.Namespace).GetLogs(newest.Name, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("get pod logs %s: %w", newest.Name, translateErr(err))
	}
	defer stream.Close()

	out, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read pod logs %s: %w", newest.Name, err)
	}
	return string(out), nil
}
