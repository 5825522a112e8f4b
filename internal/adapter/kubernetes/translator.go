package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
)

var _ port.WorkspaceTranslator = (*StatefulSetTranslator)(nil)

const (
	labelProject = "devspace.chiwei/project"

	containerName = "workspace"

	// Fixed workspace ports: the interactive editor session, the agent
	// control API and the auxiliary dev server.
	sessionPort   = 8443
	agentPort     = 3284
	devServerPort = 3000

	healthPath = "/healthz"
)

// Workspace ConfigMap keys. The three secret keys are the only place secret
// material ever lands in a cluster object; see domain.RedactConfigData.
const (
	configKeyProjectID   = "PROJECT_ID"
	configKeyShortName   = "SHORT_NAME"
	configKeyDisplayName = "DISPLAY_NAME"
	configKeyGitRepo     = "GIT_REPO"
	configKeyGitAuth     = "GIT_AUTH"
	configKeyGitCred     = "GIT_CREDENTIAL"
	configKeyJiraBaseURL = "JIRA_BASE_URL"
	configKeyJiraKeys    = "JIRA_PROJECT_KEYS"
	configKeyPortBase    = "PORT_BASE"

	configKeyAPIKey      = "ANTHROPIC_API_KEY"
	configKeyIDEPassword = "CODE_SERVER_PASSWORD"
	configKeyJiraToken   = "JIRA_API_TOKEN"
)

type TranslatorConfig struct {
	Namespace      string
	WorkspaceImage string
	ClusterDomain  string
	BaseDomain     string
}

// StatefulSetTranslator maps a project to a ConfigMap, a Service and a
// single-replica StatefulSet, all named by prefixing the shortName.
type StatefulSetTranslator struct {
	client kubernetes.Interface
	cfg    TranslatorConfig
}

func NewStatefulSetTranslator(client kubernetes.Interface, cfg TranslatorConfig) *StatefulSetTranslator {
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.ClusterDomain == "" {
		cfg.ClusterDomain = "cluster.local"
	}
	return &StatefulSetTranslator{client: client, cfg: cfg}
}

// Create provisions config, service and workload in that order. An object
// that already exists is treated as success so the call is safe to retry;
// later steps structurally depend on the earlier ones, so a genuine failure
// stops the sequence.
func (t *StatefulSetTranslator) Create(ctx context.Context, p *domain.Project) error {
	if err := t.createConfigMap(ctx, p); err != nil {
		return fmt.Errorf("create config %s: %w", p.ConfigName(), err)
	}
	if err := t.createService(ctx, p); err != nil {
		return fmt.Errorf("create service %s: %w", p.ServiceName(), err)
	}
	if err := t.createWorkload(ctx, p); err != nil {
		return fmt.Errorf("create workload %s: %w", p.WorkloadName(), err)
	}
	return nil
}

func (t *StatefulSetTranslator) createConfigMap(ctx context.Context, p *domain.Project) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.ConfigName(),
			Namespace: t.cfg.Namespace,
			Labels:    projectLabels(p.ShortName),
		},
		Data: configData(p),
	}
	_, err := t.client.CoreV1().ConfigMaps(t.cfg.Namespace).Create(ctx, cm, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		slog.Info("config already exists, keeping it", "name", cm.Name)
		return nil
	}
	return translateErr(err)
}

func (t *StatefulSetTranslator) createService(ctx context.Context, p *domain.Project) error {
	labels := projectLabels(p.ShortName)
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.ServiceName(),
			Namespace: t.cfg.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports: []corev1.ServicePort{
				{Name: "session", Port: sessionPort, TargetPort: intstr.FromInt(sessionPort)},
				{Name: "agent-api", Port: agentPort, TargetPort: intstr.FromInt(agentPort)},
				{Name: "dev-server", Port: devServerPort, TargetPort: intstr.FromInt(devServerPort)},
			},
		},
	}
	_, err := t.client.CoreV1().Services(t.cfg.Namespace).Create(ctx, svc, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		slog.Info("service already exists, keeping it", "name", svc.Name)
		return nil
	}
	return translateErr(err)
}

func (t *StatefulSetTranslator) createWorkload(ctx context.Context, p *domain.Project) error {
	sts, err := t.buildStatefulSet(p)
	if err != nil {
		return err
	}
	_, err = t.client.AppsV1().StatefulSets(t.cfg.Namespace).Create(ctx, sts, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		slog.Info("workload already exists, keeping it", "name", sts.Name)
		return nil
	}
	return translateErr(err)
}

func (t *StatefulSetTranslator) buildStatefulSet(p *domain.Project) (*appsv1.StatefulSet, error) {
	labels := projectLabels(p.ShortName)
	replicas := int32(1)

	requests := corev1.ResourceList{}
	if p.CPURequest != "" {
		q, err := resource.ParseQuantity(p.CPURequest)
		if err != nil {
			return nil, fmt.Errorf("%w: cpu request %q: %v", domain.ErrInvalidInput, p.CPURequest, err)
		}
		requests[corev1.ResourceCPU] = q
	}
	if p.MemoryRequest != "" {
		q, err := resource.ParseQuantity(p.MemoryRequest)
		if err != nil {
			return nil, fmt.Errorf("%w: memory request %q: %v", domain.ErrInvalidInput, p.MemoryRequest, err)
		}
		requests[corev1.ResourceMemory] = q
	}

	storage, err := resource.ParseQuantity(p.StorageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: storage size %q: %v", domain.ErrInvalidInput, p.StorageSize, err)
	}
	var storageClass *string
	if p.StorageClass != "" {
		sc := p.StorageClass
		storageClass = &sc
	}

	probe := &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: healthPath,
				Port: intstr.FromInt(sessionPort),
			},
		},
		InitialDelaySeconds: 15,
		PeriodSeconds:       10,
	}

	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.WorkloadName(),
			Namespace: t.cfg.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    &replicas,
			ServiceName: p.ServiceName(),
			Selector:    &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  containerName,
							Image: t.cfg.WorkspaceImage,
							Ports: []corev1.ContainerPort{
								{Name: "session", ContainerPort: sessionPort},
								{Name: "agent-api", ContainerPort: agentPort},
								{Name: "dev-server", ContainerPort: devServerPort},
							},
							EnvFrom: []corev1.EnvFromSource{
								{ConfigMapRef: &corev1.ConfigMapEnvSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: p.ConfigName()},
								}},
							},
							Resources: corev1.ResourceRequirements{Requests: requests},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "workspace", MountPath: "/workspace"},
								{Name: "tool-config", MountPath: "/home/dev/.config"},
							},
							LivenessProbe:  probe,
							ReadinessProbe: probe,
						},
					},
				},
			},
			VolumeClaimTemplates: []corev1.PersistentVolumeClaim{
				volumeClaim("workspace", storage, storageClass),
				volumeClaim("tool-config", storage, storageClass),
			},
		},
	}, nil
}

func volumeClaim(name string, size resource.Quantity, storageClass *string) corev1.PersistentVolumeClaim {
	return corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			StorageClassName: storageClass,
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
		},
	}
}

// Update patches the configuration object's mutable fields in place. The
// workload itself is never mutated here: resource or replica changes require
// delete + recreate.
func (t *StatefulSetTranslator) Update(ctx context.Context, p *domain.Project) error {
	cms := t.client.CoreV1().ConfigMaps(t.cfg.Namespace)
	existing, err := cms.Get(ctx, p.ConfigName(), metav1.GetOptions{})
	if err != nil {
		return translateErr(err)
	}
	if existing.Data == nil {
		existing.Data = map[string]string{}
	}
	existing.Data[configKeyDisplayName] = p.DisplayName
	existing.Data[configKeyGitRepo] = p.GitRepo
	existing.Data[configKeyGitCred] = p.GitCredential
	existing.Data[configKeyJiraBaseURL] = p.JiraBaseURL
	existing.Data[configKeyJiraKeys] = strings.Join(p.JiraProjectKeys, ",")
	// Secrets are write-only: an empty field means "keep what is there".
	if p.Secrets.AnthropicAPIKey != "" {
		existing.Data[configKeyAPIKey] = p.Secrets.AnthropicAPIKey
	}
	if p.Secrets.CodeServerPassword != "" {
		existing.Data[configKeyIDEPassword] = p.Secrets.CodeServerPassword
	}
	if p.Secrets.JiraAPIToken != "" {
		existing.Data[configKeyJiraToken] = p.Secrets.JiraAPIToken
	}
	_, err = cms.Update(ctx, existing, metav1.UpdateOptions{})
	return translateErr(err)
}

// Delete removes workload, service and config in that order. Each removal is
// independently best-effort: a missing object is already satisfied, so the
// call is safe to retry after partial failure. Volume claims are retained on
// purpose; deleting data is a separate manual action.
func (t *StatefulSetTranslator) Delete(ctx context.Context, p *domain.Project) error {
	var errs []error

	if err := t.client.AppsV1().StatefulSets(t.cfg.Namespace).Delete(ctx, p.WorkloadName(), metav1.DeleteOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			slog.Info("workload already gone", "name", p.WorkloadName())
		} else {
			errs = append(errs, fmt.Errorf("delete workload %s: %w", p.WorkloadName(), translateErr(err)))
		}
	}
	if err := t.client.CoreV1().Services(t.cfg.Namespace).Delete(ctx, p.ServiceName(), metav1.DeleteOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			slog.Info("service already gone", "name", p.ServiceName())
		} else {
			errs = append(errs, fmt.Errorf("delete service %s: %w", p.ServiceName(), translateErr(err)))
		}
	}
	if err := t.client.CoreV1().ConfigMaps(t.cfg.Namespace).Delete(ctx, p.ConfigName(), metav1.DeleteOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			slog.Info("config already gone", "name", p.ConfigName())
		} else {
			errs = append(errs, fmt.Errorf("delete config %s: %w", p.ConfigName(), translateErr(err)))
		}
	}
	return errors.Join(errs...)
}

// Status reads the workload replica counters and maps them onto the
// canonical health states.
func (t *StatefulSetTranslator) Status(ctx context.Context, p *domain.Project) (domain.DeploymentStatus, error) {
	sts, err := t.client.AppsV1().StatefulSets(t.cfg.Namespace).Get(ctx, p.WorkloadName(), metav1.GetOptions{})
	if err != nil {
		return domain.DeploymentStatus{}, translateErr(err)
	}
	return deriveStatus(sts), nil
}

// deriveStatus is the canonical health state machine: declared replicas R,
// ready replicas G, in-progress replicas C. The ready check runs before the
// pending check.
func deriveStatus(sts *appsv1.StatefulSet) domain.DeploymentStatus {
	var r int32
	if sts.Spec.Replicas != nil {
		r = *sts.Spec.Replicas
	}
	g := sts.Status.ReadyReplicas
	c := sts.Status.CurrentReplicas

	var phase domain.ProjectStatus
	switch {
	case r > 0 && g == r:
		phase = domain.StatusRunning
	case c > 0 && g < r:
		phase = domain.StatusCreating
	case r == 0:
		phase = domain.StatusStopped
	default:
		phase = domain.StatusError
	}
	return domain.DeploymentStatus{
		Phase:       phase,
		Message:     fmt.Sprintf("%d/%d replicas ready", g, r),
		LastUpdated: time.Now(),
	}
}

// Scale patches the replica count only; used for stop/start without touching
// storage.
func (t *StatefulSetTranslator) Scale(ctx context.Context, p *domain.Project, replicas int32) error {
	stss := t.client.AppsV1().StatefulSets(t.cfg.Namespace)
	existing, err := stss.Get(ctx, p.WorkloadName(), metav1.GetOptions{})
	if err != nil {
		return translateErr(err)
	}
	existing.Spec.Replicas = &replicas
	_, err = stss.Update(ctx, existing, metav1.UpdateOptions{})
	return translateErr(err)
}

// AccessURLs derives the workspace entry points for a project.
func (t *StatefulSetTranslator) AccessURLs(p *domain.Project) domain.AccessURLs {
	return buildAccessURLs(p.ShortName, t.cfg.Namespace, t.cfg.ClusterDomain, t.cfg.BaseDomain)
}

func projectLabels(shortName string) map[string]string {
	return map[string]string{
		"app":        shortName,
		labelProject: shortName,
	}
}

func configData(p *domain.Project) map[string]string {
	return map[string]string{
		configKeyProjectID:   p.ID,
		configKeyShortName:   p.ShortName,
		configKeyDisplayName: p.DisplayName,
		configKeyGitRepo:     p.GitRepo,
		configKeyGitAuth:     string(p.GitAuth),
		configKeyGitCred:     p.GitCredential,
		configKeyJiraBaseURL: p.JiraBaseURL,
		configKeyJiraKeys:    strings.Join(p.JiraProjectKeys, ","),
		configKeyPortBase:    strconv.Itoa(p.PortBase),

		configKeyAPIKey:      p.Secrets.AnthropicAPIKey,
		configKeyIDEPassword: p.Secrets.CodeServerPassword,
		configKeyJiraToken:   p.Secrets.JiraAPIToken,
	}
}

// buildAccessURLs derives the per-workspace entry points. The agent API is
// always addressed through the in-cluster service; the editor and dev server
// go through the external base domain when one is configured.
func buildAccessURLs(shortName, namespace, clusterDomain, baseDomain string) domain.AccessURLs {
	svcHost := fmt.Sprintf("%s-service.%s.svc.%s", shortName, namespace, clusterDomain)
	urls := domain.AccessURLs{
		IDE:       fmt.Sprintf("http://%s:%d", svcHost, sessionPort),
		AgentAPI:  fmt.Sprintf("http://%s:%d", svcHost, agentPort),
		DevServer: fmt.Sprintf("http://%s:%d", svcHost, devServerPort),
	}
	if baseDomain != "" {
		urls.IDE = fmt.Sprintf("https://%s.%s", shortName, baseDomain)
		urls.DevServer = fmt.Sprintf("https://%s-dev.%s", shortName, baseDomain)
	}
	return urls
}
