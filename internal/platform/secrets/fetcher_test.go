package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type accessStub struct {
	values map[string]string
	err    error
	calls  []string
}

func (s *accessStub) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls = append(s.calls, req.GetName())
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such version")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (s *accessStub) Close() error { return nil }

func newTestFetcher(t *testing.T, stub *accessStub, opts ...Option) *Fetcher {
	t.Helper()
	opts = append([]Option{
		WithClient(stub),
		WithEnvironment("test"),
		WithProjectMap(map[string]string{"test": "flute-test"}),
		WithFallbackFile(""),
	}, opts...)
	fetcher, err := NewFetcher(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	t.Cleanup(func() { fetcher.Close() })
	return fetcher
}

func TestResolveFetchesAndCaches(t *testing.T) {
	stub := &accessStub{values: map[string]string{
		"projects/flute-test/secrets/stripe-api-key/versions/latest": "sk_test_123",
	}}
	fetcher := newTestFetcher(t, stub)

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://psp/stripe-api-key")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if value != "sk_test_123" {
			t.Fatalf("value = %q, want sk_test_123", value)
		}
	}
	if len(stub.calls) != 1 {
		t.Fatalf("remote calls = %d, want 1 (second read should hit the cache)", len(stub.calls))
	}
}

func TestResolveHonorsEnvironmentVersionPin(t *testing.T) {
	stub := &accessStub{values: map[string]string{
		"projects/flute-test/secrets/webhook-secret/versions/7": "whsec_pinned",
	}}
	fetcher := newTestFetcher(t, stub, WithVersionPins(map[string]string{
		"secret://psp/webhook-secret":      "3",
		"test:secret://psp/webhook-secret": "7",
	}))

	value, err := fetcher.Resolve(context.Background(), "secret://psp/webhook-secret")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "whsec_pinned" {
		t.Fatalf("value = %q, want whsec_pinned", value)
	}
	if want := "projects/flute-test/secrets/webhook-secret/versions/7"; stub.calls[0] != want {
		t.Fatalf("resource = %q, want %q", stub.calls[0], want)
	}
}

func TestResolveQueryOverridesProjectAndVersion(t *testing.T) {
	stub := &accessStub{values: map[string]string{
		"projects/flute-payments/secrets/stripe-api-key/versions/2": "sk_live_2",
	}}
	fetcher := newTestFetcher(t, stub)

	value, err := fetcher.Resolve(context.Background(), "secret://psp/stripe-api-key?project=flute-payments&version=2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "sk_live_2" {
		t.Fatalf("value = %q, want sk_live_2", value)
	}
}

func TestResolveFallsBackWhenAccessDenied(t *testing.T) {
	dir := t.TempDir()
	fallbackPath := filepath.Join(dir, ".secrets.local")
	contents := "# local overrides\nsecret://psp/stripe-api-key=sk_local\nsm://events/topic-key=tk_local\n"
	if err := os.WriteFile(fallbackPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	stub := &accessStub{err: status.Error(codes.PermissionDenied, "caller lacks access")}
	fetcher := newTestFetcher(t, stub, WithFallbackFile(fallbackPath))

	value, err := fetcher.Resolve(context.Background(), "secret://psp/stripe-api-key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "sk_local" {
		t.Fatalf("value = %q, want sk_local", value)
	}

	// sm:// keys in the file normalize to secret:// references.
	value, err = fetcher.Resolve(context.Background(), "secret://events/topic-key")
	if err != nil {
		t.Fatalf("Resolve sm-normalized key: %v", err)
	}
	if value != "tk_local" {
		t.Fatalf("value = %q, want tk_local", value)
	}
}

func TestResolveSurfacesNonEnvironmentalErrors(t *testing.T) {
	stub := &accessStub{err: status.Error(codes.NotFound, "secret does not exist")}
	fetcher := newTestFetcher(t, stub)

	_, err := fetcher.Resolve(context.Background(), "secret://psp/typoed-name")
	if err == nil {
		t.Fatal("expected an error for a missing secret")
	}
	if status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Fatalf("err = %v, want wrapped NotFound", err)
	}
}

func TestResolveRejectsMalformedReferences(t *testing.T) {
	fetcher := newTestFetcher(t, &accessStub{})

	for _, ref := range []string{"", "https://example.com/x", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); err == nil {
			t.Fatalf("Resolve(%q) succeeded, want error", ref)
		}
	}
}
