package gitbackup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
	yamlv3 "gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

// Snapshot tree layout. This is the wire format for restore and for the
// list-backups contract; it must stay stable across versions.
const (
	controlPlaneDir = "control-plane"
	projectsDir     = "projects"
	rootIndexFile   = "index.yaml"
	manifestPrefix  = "backup-manifest-"
)

type manifest struct {
	Timestamp    string             `yaml:"timestamp"`
	TakenAt      time.Time          `yaml:"taken_at"`
	ProjectCount int                `yaml:"project_count"`
	Projects     []string           `yaml:"projects"`
	Cluster      domain.ClusterInfo `yaml:"cluster"`
	Categories   map[string]bool    `yaml:"categories"`
}

type projectIndex struct {
	ShortName string   `yaml:"short_name"`
	Objects   []string `yaml:"objects"`
}

type rootIndex struct {
	Directories []string `yaml:"directories"`
	Timestamp   string   `yaml:"timestamp"`
}

// writeTree serializes a snapshot into dir as a deterministic, human-diffable
// directory layout and returns the snapshot's timestamp token. The previous
// control-plane and project trees are replaced wholesale so objects deleted
// from the cluster disappear from the backup; manifests accumulate, one per
// snapshot.
func writeTree(dir string, snap *domain.Snapshot) (string, error) {
	ts := snap.TimestampToken()

	for _, sub := range []string{controlPlaneDir, projectsDir} {
		if err := os.RemoveAll(filepath.Join(dir, sub)); err != nil {
			return "", fmt.Errorf("clear %s: %w", sub, err)
		}
	}

	if err := writeControlPlane(filepath.Join(dir, controlPlaneDir), &snap.ControlPlane); err != nil {
		return "", err
	}

	shortNames := make([]string, 0, len(snap.Projects))
	for short, objects := range snap.Projects {
		shortNames = append(shortNames, short)
		if err := writeProject(filepath.Join(dir, projectsDir, short), short, objects); err != nil {
			return "", err
		}
	}
	sort.Strings(shortNames)

	if err := writeYAMLv3(filepath.Join(dir, rootIndexFile), rootIndex{
		Directories: []string{controlPlaneDir, projectsDir},
		Timestamp:   ts,
	}); err != nil {
		return "", err
	}

	if err := writeYAMLv3(filepath.Join(dir, manifestPrefix+ts+".yaml"), manifest{
		Timestamp:    ts,
		TakenAt:      snap.Timestamp.UTC(),
		ProjectCount: len(shortNames),
		Projects:     shortNames,
		Cluster:      snap.Cluster,
		Categories:   snap.Categories,
	}); err != nil {
		return "", err
	}

	return ts, nil
}

func writeControlPlane(dir string, objects *domain.ControlPlaneObjects) error {
	for i := range objects.Deployments {
		d := &objects.Deployments[i]
		if err := writeObject(filepath.Join(dir, "deployments", d.Name+".yaml"), d); err != nil {
			return err
		}
	}
	for i := range objects.Services {
		s := &objects.Services[i]
		if err := writeObject(filepath.Join(dir, "services", s.Name+".yaml"), s); err != nil {
			return err
		}
	}
	for i := range objects.ConfigMaps {
		cm := &objects.ConfigMaps[i]
		if err := writeObject(filepath.Join(dir, "configmaps", cm.Name+".yaml"), cm); err != nil {
			return err
		}
	}
	return nil
}

func writeProject(dir, short string, objects *domain.ProjectObjects) error {
	idx := projectIndex{ShortName: short}

	if objects.Workload != nil {
		if err := writeObject(filepath.Join(dir, "workload.yaml"), objects.Workload); err != nil {
			return err
		}
		idx.Objects = append(idx.Objects, "workload.yaml")
	}
	if objects.Service != nil {
		if err := writeObject(filepath.Join(dir, "service.yaml"), objects.Service); err != nil {
			return err
		}
		idx.Objects = append(idx.Objects, "service.yaml")
	}
	if objects.Config != nil {
		if err := writeObject(filepath.Join(dir, "config.yaml"), objects.Config); err != nil {
			return err
		}
		idx.Objects = append(idx.Objects, "config.yaml")
	}

	return writeYAMLv3(filepath.Join(dir, "index.yaml"), idx)
}

// writeObject serializes a Kubernetes object with the json-tag aware YAML
// codec so the files round-trip through kubectl.
func writeObject(path string, obj any) error {
	data, err := k8syaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeFile(path, data)
}

func writeYAMLv3(path string, v any) error {
	data, err := yamlv3.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// enumerateManifests parses every snapshot manifest in dir, newest first.
func enumerateManifests(dir string) ([]port.BackupInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, manifestPrefix+"*.yaml"))
	if err != nil {
		return nil, err
	}

	infos := make([]port.BackupInfo, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", path, err)
		}
		var m manifest
		if err := yamlv3.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		infos = append(infos, port.BackupInfo{
			Timestamp:    m.Timestamp,
			TakenAt:      m.TakenAt,
			ProjectCount: m.ProjectCount,
			Projects:     m.Projects,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp > infos[j].Timestamp
	})
	return infos, nil
}
