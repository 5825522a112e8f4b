package kubernetes

import (
	"context"
	"fmt"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	"github.com/chiwei-platform/devspace-engine/internal/port"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var _ port.CredentialStore = (*SecretCredentialStore)(nil)

const labelCredential = "devspace.chiwei/credential"

const (
	secretKeyID         = "id"
	secretKeyProvider   = "provider"
	secretKeyToken      = "token"
	secretKeyPrivateKey = "ssh-private-key"
	secretKeyPublicKey  = "ssh-public-key"
)

// SecretCredentialStore keeps git credentials as labelled Secrets in the
// control namespace, so the cluster remains the only durable store.
type SecretCredentialStore struct {
	client    kubernetes.Interface
	namespace string
}

func NewSecretCredentialStore(client kubernetes.Interface, namespace string) *SecretCredentialStore {
	if namespace == "" {
		namespace = "default"
	}
	return &SecretCredentialStore{client: client, namespace: namespace}
}

func secretName(credName string) string { return "git-cred-" + credName }

func (s *SecretCredentialStore) Save(ctx context.Context, cred *domain.GitCredential) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      secretName(cred.Name),
			Namespace: s.namespace,
			Labels:    map[string]string{labelCredential: cred.Name},
		},
		Type: corev1.SecretTypeOpaque,
		StringData: map[string]string{
			secretKeyID:         cred.ID,
			secretKeyProvider:   string(cred.Provider),
			secretKeyToken:      cred.Token,
			secretKeyPrivateKey: cred.SSHPrivateKey,
			secretKeyPublicKey:  cred.SSHPublicKey,
		},
	}
	_, err := s.client.CoreV1().Secrets(s.namespace).Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("credential %q %w", cred.Name, domain.ErrAlreadyExists)
	}
	return translateErr(err)
}

func (s *SecretCredentialStore) Get(ctx context.Context, name string) (*domain.GitCredential, error) {
	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, secretName(name), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, translateErr(err)
	}
	return fromSecret(name, secret), nil
}

func (s *SecretCredentialStore) List(ctx context.Context) ([]*domain.GitCredential, error) {
	list, err := s.client.CoreV1().Secrets(s.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelCredential,
	})
	if err != nil {
		return nil, translateErr(err)
	}
	creds := make([]*domain.GitCredential, 0, len(list.Items))
	for i := range list.Items {
		secret := &list.Items[i]
		creds = append(creds, fromSecret(secret.Labels[labelCredential], secret))
	}
	return creds, nil
}

func (s *SecretCredentialStore) Delete(ctx context.Context, name string) error {
	err := s.client.CoreV1().Secrets(s.namespace).Delete(ctx, secretName(name), metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return domain.ErrCredentialNotFound
	}
	return translateErr(err)
}

func fromSecret(name string, secret *corev1.Secret) *domain.GitCredential {
	get := func(key string) string { return string(secret.Data[key]) }
	return &domain.GitCredential{
		ID:            get(secretKeyID),
		Name:          name,
		Provider:      domain.GitProvider(get(secretKeyProvider)),
		Token:         get(secretKeyToken),
		SSHPrivateKey: get(secretKeyPrivateKey),
		SSHPublicKey:  get(secretKeyPublicKey),
		CreatedAt:     secret.CreationTimestamp.Time,
	}
}
