package services

import (
	"context"
	"errors"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles the dependency probes behind the system service.
type SystemServiceDeps struct {
	Firestore repositories.HealthRepository
	Extra     map[string]func(ctx context.Context) domain.SystemHealthCheck
	Clock     func() time.Time
	Build     BuildInfo
}

type systemService struct {
	firestore repositories.HealthRepository
	extra     map[string]func(ctx context.Context) domain.SystemHealthCheck
	now       func() time.Time
	build     BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the health reporting service.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Firestore == nil {
		return nil, errors.New("system service: firestore health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	return &systemService{
		firestore: deps.Firestore,
		extra:     deps.Extra,
		now:       func() time.Time { return clock().UTC() },
		build:     build,
	}, nil
}

// Health probes every registered dependency and derives the overall status:
// error when any probe errors, degraded when any probe degrades, ok otherwise.
func (s *systemService) Health(ctx context.Context) domain.SystemHealthReport {
	now := s.now()
	checks := map[string]domain.SystemHealthCheck{
		"firestore": s.firestore.Ping(ctx),
	}
	for name, probe := range s.extra {
		if probe == nil {
			continue
		}
		checks[name] = probe(ctx)
	}

	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status != domain.HealthStatusError {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.SystemHealthReport{
		Status:      status,
		Checks:      checks,
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		Uptime:      now.Sub(s.build.StartedAt.UTC()),
		GeneratedAt: now,
	}
}
