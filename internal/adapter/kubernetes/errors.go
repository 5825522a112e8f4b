package kubernetes

import (
	"context"
	"errors"
	"fmt"

	"github.com/chiwei-platform/devspace-engine/internal/domain"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// translateErr maps Kubernetes API errors onto the domain sentinels once, so
// callers can branch on error kind without importing apimachinery.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return fmt.Errorf("%w: %v", domain.ErrForbidden, err)
	case apierrors.IsTimeout(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsTooManyRequests(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	default:
		return err
	}
}
