package domain

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

// Snapshot is a point-in-time export of the full topology, immutable once
// produced and identified by its timestamp. It is the only input to the
// backup store.
type Snapshot struct {
	Timestamp time.Time
	Cluster   ClusterInfo

	// ControlPlane holds the engine's own objects in the control namespace.
	ControlPlane ControlPlaneObjects

	// Projects maps shortName to that project's exported objects.
	Projects map[string]*ProjectObjects

	// Categories records, per listed resource category, whether the export
	// succeeded. A failed category never blocks the others.
	Categories map[string]bool
}

type ClusterInfo struct {
	Namespace     string `yaml:"namespace"`
	ServerVersion string `yaml:"server_version,omitempty"`
}

type ControlPlaneObjects struct {
	Deployments []appsv1.Deployment
	Services    []corev1.Service
	ConfigMaps  []corev1.ConfigMap
}

// ProjectObjects are the three cluster objects that make up one workspace.
// Any of them may be nil when the corresponding listing failed or the object
// was missing mid-scan.
type ProjectObjects struct {
	Workload *appsv1.StatefulSet
	Service  *corev1.Service
	Config   *corev1.ConfigMap
}

// ProjectObjects returns the object set for a shortName, allocating it on
// first use so categories can attach objects in any order.
func (s *Snapshot) ProjectObjects(shortName string) *ProjectObjects {
	po, ok := s.Projects[shortName]
	if !ok {
		po = &ProjectObjects{}
		s.Projects[shortName] = po
	}
	return po
}

// TimestampToken formats a snapshot timestamp as the stable token used in
// manifest file names and commit messages.
func (s *Snapshot) TimestampToken() string {
	return s.Timestamp.UTC().Format(TimestampLayout)
}

const TimestampLayout = "20060102-150405"
