// Package secrets resolves secret:// references against Google Secret
// Manager. Resolved values are cached for the process lifetime, and a local
// fallback file keeps development machines working without cloud access.
package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	meterName           = "fluteatelier/api/secrets"
)

// accessClient is the slice of the Secret Manager client the fetcher needs;
// tests substitute a stub.
type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// Fetcher resolves secret references. Config fields like the Stripe keys
// hold references (secret://psp/stripe-api-key) instead of values; the
// fetcher turns them into values at startup.
type Fetcher struct {
	client     accessClient
	ownsClient bool
	logger     *zap.Logger

	env            string
	defaultProject string
	projectByEnv   map[string]string
	versionPins    map[string]string

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string

	latency    metric.Float64Histogram
	hasLatency bool
	hits       metric.Int64Counter
	hasHits    bool
}

type fetcherConfig struct {
	logger         *zap.Logger
	env            string
	defaultProject string
	projectByEnv   map[string]string
	versionPins    map[string]string
	fallbackPath   string
	meter          metric.Meter
	client         accessClient
	clientOpts     []option.ClientOption
}

type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithEnvironment selects which per-environment project mapping applies.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) { cfg.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject sets the project used when no environment mapping
// matches.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.defaultProject = strings.TrimSpace(projectID) }
}

// WithProjectMap maps environment labels to Secret Manager project IDs.
func WithProjectMap(m map[string]string) Option {
	return func(cfg *fetcherConfig) { cfg.projectByEnv = cloneMap(m) }
}

// WithFallbackFile points at the local key=value secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithVersionPins pins specific secret versions, keyed by canonical
// reference or "env:reference".
func WithVersionPins(pins map[string]string) Option {
	return func(cfg *fetcherConfig) { cfg.versionPins = cloneMap(pins) }
}

// WithMeter injects a meter, primarily for tests.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithClient injects a preconfigured client, primarily for tests.
func WithClient(client accessClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithClientOptions forwards Cloud client options (credentials file etc.).
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. A missing Secret Manager client is not fatal:
// the fetcher degrades to fallback-file-only mode so local development works
// offline.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("API_SECURITY_ENVIRONMENT"))),
		fallbackPath: defaultFallbackPath,
	}
	if cfg.env == "" {
		cfg.env = defaultEnvironment
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	latency, latencyErr := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution attempts"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("secrets: latency metric unavailable", zap.Error(latencyErr))
	}
	hits, hitsErr := meter.Int64Counter(
		"secrets.fetch.cache_hits",
		metric.WithDescription("Secret resolutions served from the in-process cache"),
	)
	if hitsErr != nil {
		cfg.logger.Warn("secrets: cache hit metric unavailable", zap.Error(hitsErr))
	}

	f := &Fetcher{
		logger:         cfg.logger,
		env:            cfg.env,
		defaultProject: cfg.defaultProject,
		projectByEnv:   cloneMap(cfg.projectByEnv),
		versionPins:    cloneMap(cfg.versionPins),
		fallbackPath:   cfg.fallbackPath,
		cache:          make(map[string]string),
		latency:        latency,
		hasLatency:     latencyErr == nil,
		hits:           hits,
		hasHits:        hitsErr == nil,
	}

	if cfg.client != nil {
		f.client = cfg.client
	} else {
		client, err := newSecretManagerClient(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager unavailable; using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}

	return f, nil
}

// Close releases the underlying client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value for a secret:// reference. Remote failures that
// look environmental (permissions, connectivity) fall through to the
// fallback file; anything else is surfaced so a typoed secret name fails
// loudly at startup.
func (f *Fetcher) Resolve(ctx context.Context, rawRef string) (string, error) {
	start := time.Now()
	ref, err := parseRef(rawRef)
	if err != nil {
		return "", err
	}

	version := f.pinnedVersion(ref)
	key := ref.Canonical + "#" + version

	if value, ok := f.cached(key); ok {
		f.countHit(ctx, ref)
		f.observe(ctx, time.Since(start), "cache", nil)
		return value, nil
	}

	project := f.projectFor(ref)
	if project != "" && f.client != nil {
		value, fetchErr := f.access(ctx, project, ref.Name, version)
		if fetchErr == nil {
			f.remember(key, value)
			f.observe(ctx, time.Since(start), "remote", nil)
			return value, nil
		}
		if !degradedToFallback(fetchErr) {
			f.observe(ctx, time.Since(start), "error", fetchErr)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", ref.Canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local file", zap.String("ref", ref.Canonical), zap.Error(fetchErr))
	}

	value, ok := f.fromFallback(ref, version)
	if !ok {
		err := fmt.Errorf("secrets: no fallback value for %s", ref.Canonical)
		f.observe(ctx, time.Since(start), "error", err)
		return "", err
	}
	f.remember(key, value)
	f.observe(ctx, time.Since(start), "fallback", nil)
	return value, nil
}

func (f *Fetcher) access(ctx context.Context, project, name, version string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", resource)
	}
	return string(resp.Payload.GetData()), nil
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.cache[key]
	return value, ok
}

func (f *Fetcher) remember(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func (f *Fetcher) projectFor(ref secretRef) string {
	if ref.Project != "" {
		return ref.Project
	}
	if id := strings.TrimSpace(f.projectByEnv[f.env]); id != "" {
		return id
	}
	return strings.TrimSpace(f.defaultProject)
}

func (f *Fetcher) pinnedVersion(ref secretRef) string {
	if ref.Version != "" {
		return ref.Version
	}
	if pin := strings.TrimSpace(f.versionPins[f.env+":"+ref.Canonical]); pin != "" {
		return pin
	}
	if pin := strings.TrimSpace(f.versionPins[ref.Canonical]); pin != "" {
		return pin
	}
	return "latest"
}

func (f *Fetcher) fromFallback(ref secretRef, version string) (string, bool) {
	f.loadFallback()
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback file unreadable", zap.Error(f.fallbackErr))
		return "", false
	}
	if value, ok := f.fallback[ref.Canonical+"#"+version]; ok {
		return value, true
	}
	value, ok := f.fallback[ref.Canonical]
	return value, ok
}

// loadFallback parses the key=value fallback file once. Keys are secret
// references ("secret://psp/stripe-api-key" or the sm:// shorthand);
// comments and blank lines are skipped.
func (f *Fetcher) loadFallback() {
	f.fallbackOnce.Do(func() {
		f.fallback = map[string]string{}
		path := strings.TrimSpace(f.fallbackPath)
		if path == "" {
			return
		}

		file, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			eq := strings.IndexByte(line, '=')
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			value := strings.TrimSpace(line[eq+1:])
			if strings.HasPrefix(key, "sm://") {
				key = "secret://" + strings.TrimPrefix(key, "sm://")
			}
			if ref, err := parseRef(key); err == nil {
				version := ref.Version
				if version == "" {
					version = "latest"
				}
				f.fallback[ref.Canonical] = value
				f.fallback[ref.Canonical+"#"+version] = value
			} else if key != "" {
				f.fallback[key] = value
			}
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", path, err)
		}
	})
}

func (f *Fetcher) observe(ctx context.Context, d time.Duration, source string, err error) {
	if !f.hasLatency {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) countHit(ctx context.Context, ref secretRef) {
	if !f.hasHits {
		return
	}
	// Hash the reference so metric labels never leak secret names.
	sum := sha256.Sum256([]byte(ref.Canonical))
	f.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", hex.EncodeToString(sum[:8]))))
}

type secretRef struct {
	Canonical string
	Name      string
	Version   string
	Project   string
}

func parseRef(raw string) (secretRef, error) {
	if strings.TrimSpace(raw) == "" {
		return secretRef{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return secretRef{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return secretRef{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if name == "" {
		return secretRef{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	query := u.Query()
	return secretRef{
		Canonical: canonical.String(),
		Name:      name,
		Version:   strings.TrimSpace(query.Get("version")),
		Project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// degradedToFallback reports whether the error looks environmental rather
// than a bad reference.
func degradedToFallback(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func cloneMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
