package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const healthProbeTimeout = 1500 * time.Millisecond

// HealthRepository probes Firestore connectivity by fetching the settings
// document, a read every deployment is guaranteed to have access to.
type HealthRepository struct {
	provider *pfirestore.Provider
	now      func() time.Time
}

// NewHealthRepository constructs the Firestore connectivity probe.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("health repository requires firestore provider")
	}
	return &HealthRepository{provider: provider, now: time.Now}, nil
}

// Ping performs a bounded read against Firestore and reports the outcome.
// A missing settings document still proves connectivity and counts as ok.
func (r *HealthRepository) Ping(ctx context.Context) domain.SystemHealthCheck {
	start := r.now().UTC()
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	check := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		CheckedAt: start,
	}

	client, err := r.provider.Client(probeCtx)
	if err != nil {
		check.Status = domain.HealthStatusError
		check.Error = err.Error()
		check.Latency = r.now().UTC().Sub(start)
		return check
	}

	_, err = client.Collection(settingsCollection).Doc(settingsDocID).Get(probeCtx)
	check.Latency = r.now().UTC().Sub(start)
	if err != nil {
		wrapped := pfirestore.WrapError("health.ping", err)
		var repoErr repositories.RepositoryError
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			check.Detail = "settings document absent"
			return check
		}
		check.Status = domain.HealthStatusError
		check.Error = wrapped.Error()
	}
	return check
}

var _ repositories.HealthRepository = (*HealthRepository)(nil)
