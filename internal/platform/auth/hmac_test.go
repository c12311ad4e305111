package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var hmacTestNow = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func newTestHMACValidator(secrets map[string]string) *HMACValidator {
	provider := SecretProviderFunc(func(_ context.Context, name string) (string, error) {
		return secrets[name], nil
	})
	validator := NewHMACValidator(provider, NewInMemoryNonceStore())
	validator.now = func() time.Time { return hmacTestNow }
	return validator
}

func signedDelivery(t *testing.T, secret, method, path, body, nonce string) *http.Request {
	t.Helper()
	timestamp := hmacTestNow.Format(time.RFC3339)

	bodyHash := sha256.Sum256([]byte(body))
	payload := strings.Join([]string{
		method,
		path,
		timestamp,
		nonce,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set(defaultSignatureHeader, base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set(defaultTimestampHeader, timestamp)
	req.Header.Set(defaultNonceHeader, nonce)
	return req
}

func TestRequireHMACAcceptsSignedDelivery(t *testing.T) {
	validator := newTestHMACValidator(map[string]string{"shipping-partner": "topsecret"})

	body := `{"awb":"AWB123","status":"delivered"}`
	req := signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", body, "nonce-1")

	rec := httptest.NewRecorder()
	validator.RequireHMAC("shipping-partner")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must survive verification for the handler to parse.
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil {
			t.Fatalf("read body: %v", err)
		}
		if buf.String() != body {
			t.Fatalf("body = %q", buf.String())
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRequireHMACRejectsTamperedBody(t *testing.T) {
	validator := newTestHMACValidator(map[string]string{"shipping-partner": "topsecret"})

	req := signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", `{"status":"delivered"}`, "nonce-1")
	req.Body = http.NoBody
	req.ContentLength = 0

	rec := httptest.NewRecorder()
	validator.RequireHMAC("shipping-partner")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with tampered body")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "signature_mismatch" {
		t.Fatalf("error = %q", code)
	}
}

func TestRequireHMACRejectsReplayedNonce(t *testing.T) {
	validator := newTestHMACValidator(map[string]string{"shipping-partner": "topsecret"})
	middleware := validator.RequireHMAC("shipping-partner")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	first := httptest.NewRecorder()
	middleware(ok).ServeHTTP(first, signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", "{}", "nonce-9"))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first delivery status = %d", first.Code)
	}

	replay := httptest.NewRecorder()
	middleware(ok).ServeHTTP(replay, signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", "{}", "nonce-9"))
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d", replay.Code)
	}
	if code := decodeErrorCode(t, replay); code != "nonce_replay" {
		t.Fatalf("error = %q", code)
	}
}

func TestRequireHMACRejectsStaleTimestamp(t *testing.T) {
	validator := newTestHMACValidator(map[string]string{"shipping-partner": "topsecret"})

	req := signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", "{}", "nonce-1")
	req.Header.Set(defaultTimestampHeader, hmacTestNow.Add(-time.Hour).Format(time.RFC3339))

	rec := httptest.NewRecorder()
	validator.RequireHMAC("shipping-partner")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached with stale timestamp")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "timestamp_skew" {
		t.Fatalf("error = %q", code)
	}
}

func TestRequireHMACResolverRoutesByProvider(t *testing.T) {
	validator := newTestHMACValidator(map[string]string{"shipping-partner": "topsecret"})
	resolver := func(r *http.Request) (string, bool) {
		provider := strings.TrimPrefix(r.URL.Path, "/internal/webhooks/")
		if provider == "" || strings.Contains(provider, "/") {
			return "", false
		}
		return provider, true
	}
	middleware := validator.RequireHMACResolver(resolver)

	rec := httptest.NewRecorder()
	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/shipping-partner", "{}", "nonce-5"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	unknown := httptest.NewRecorder()
	middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached for unknown provider")
	})).ServeHTTP(unknown, signedDelivery(t, "topsecret", http.MethodPost, "/internal/webhooks/", "{}", "nonce-6"))
	if unknown.Code != http.StatusUnauthorized {
		t.Fatalf("unknown provider status = %d", unknown.Code)
	}
	if code := decodeErrorCode(t, unknown); code != "unknown_provider" {
		t.Fatalf("error = %q", code)
	}
}

func TestInMemoryNonceStoreExpiresEntries(t *testing.T) {
	store := NewInMemoryNonceStore()

	fresh, err := store.UseNonce(context.Background(), "shipping-partner", "n1", time.Now().Add(50*time.Millisecond))
	if err != nil || !fresh {
		t.Fatalf("first use: fresh=%v err=%v", fresh, err)
	}
	if fresh, _ = store.UseNonce(context.Background(), "shipping-partner", "n1", time.Now().Add(time.Minute)); fresh {
		t.Fatal("duplicate nonce accepted")
	}

	time.Sleep(60 * time.Millisecond)
	fresh, err = store.UseNonce(context.Background(), "shipping-partner", "n1", time.Now().Add(time.Minute))
	if err != nil || !fresh {
		t.Fatalf("expired nonce should be reusable: fresh=%v err=%v", fresh, err)
	}
}
