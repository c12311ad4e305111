package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fluteatelier/api/internal/platform/httpx"
)

// Logistics and payment partners sign their webhook deliveries over
// method, path, timestamp, nonce and a SHA-256 of the body, each on its own
// line. The timestamp bounds replay of a captured request; the nonce closes
// the window the clock skew leaves open.
const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultNonceHeader     = "X-Signature-Nonce"

	defaultClockSkew = 5 * time.Minute
	defaultNonceTTL  = 5 * time.Minute
)

// SecretProvider resolves the shared secret for a named partner.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to SecretProvider.
type SecretProviderFunc func(context.Context, string) (string, error)

func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// NonceStore records nonces for replay detection. UseNonce returns true when
// the nonce was new and is now recorded, false when it was already seen.
type NonceStore interface {
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
}

// InMemoryNonceStore is a process-local NonceStore. A single API instance
// sees every delivery for a partner, so it suffices outside of multi-region
// deployments.
type InMemoryNonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{seen: make(map[string]time.Time)}
}

func (s *InMemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, exp := range s.seen {
		if exp.Before(now) {
			delete(s.seen, key)
		}
	}
	if expiry.Before(now) {
		return false, errors.New("auth: nonce expiry is in the past")
	}

	key := scope + "::" + nonce
	if exp, ok := s.seen[key]; ok && exp.After(now) {
		return false, nil
	}
	s.seen[key] = expiry
	return true, nil
}

// HMACValidator verifies signed webhook deliveries from shipping and
// payment partners.
type HMACValidator struct {
	provider SecretProvider
	nonces   NonceStore
	logger   Logger
	now      func() time.Time

	signatureHeader string
	timestampHeader string
	nonceHeader     string

	clockSkew time.Duration
	nonceTTL  time.Duration

	secrets sync.Map
}

type HMACOption func(*HMACValidator)

// WithHMACLogger overrides the validator logger.
func WithHMACLogger(logger Logger) HMACOption {
	return func(v *HMACValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithHMACHeaders renames the signature, timestamp and nonce headers for
// partners that dictate their own.
func WithHMACHeaders(signature, timestamp, nonce string) HMACOption {
	return func(v *HMACValidator) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if timestamp != "" {
			v.timestampHeader = timestamp
		}
		if nonce != "" {
			v.nonceHeader = nonce
		}
	}
}

// WithHMACClockSkew widens or narrows the accepted timestamp window.
func WithHMACClockSkew(d time.Duration) HMACOption {
	return func(v *HMACValidator) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// WithHMACNonceTTL sets how long nonces are retained.
func WithHMACNonceTTL(d time.Duration) HMACOption {
	return func(v *HMACValidator) {
		if d > 0 {
			v.nonceTTL = d
		}
	}
}

func NewHMACValidator(provider SecretProvider, nonces NonceStore, opts ...HMACOption) *HMACValidator {
	validator := &HMACValidator{
		provider:        provider,
		nonces:          nonces,
		logger:          log.Default(),
		now:             time.Now,
		signatureHeader: defaultSignatureHeader,
		timestampHeader: defaultTimestampHeader,
		nonceHeader:     defaultNonceHeader,
		clockSkew:       defaultClockSkew,
		nonceTTL:        defaultNonceTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}
	return validator
}

// RequireHMAC verifies the delivery against the named partner secret.
func (v *HMACValidator) RequireHMAC(secretName string) func(http.Handler) http.Handler {
	partner := strings.TrimSpace(secretName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if partner == "" {
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "webhook secret not configured", http.StatusServiceUnavailable))
				return
			}

			secret, err := v.partnerSecret(ctx, partner)
			if err != nil {
				v.logger.Printf("auth: webhook secret lookup failed: %v", err)
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "webhook secret unavailable", http.StatusServiceUnavailable))
				return
			}

			signatureValue := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signatureValue == "" {
				httpx.WriteError(ctx, w, httpx.NewError("signature_missing", "signature header missing", http.StatusUnauthorized))
				return
			}

			timestampValue := strings.TrimSpace(r.Header.Get(v.timestampHeader))
			if timestampValue == "" {
				httpx.WriteError(ctx, w, httpx.NewError("timestamp_missing", "signature timestamp missing", http.StatusUnauthorized))
				return
			}
			timestamp, err := parseSignatureTimestamp(timestampValue)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("timestamp_invalid", "signature timestamp invalid", http.StatusUnauthorized))
				return
			}
			if skew := v.now().Sub(timestamp); skew > v.clockSkew || skew < -v.clockSkew {
				httpx.WriteError(ctx, w, httpx.NewError("timestamp_skew", "signature timestamp outside allowed window", http.StatusUnauthorized))
				return
			}

			nonce := strings.TrimSpace(r.Header.Get(v.nonceHeader))
			if nonce == "" {
				httpx.WriteError(ctx, w, httpx.NewError("nonce_missing", "signature nonce missing", http.StatusUnauthorized))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read body for signature verification", http.StatusBadRequest))
				return
			}

			signature, err := decodeSignature(signatureValue)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("signature_invalid", "signature encoding invalid", http.StatusUnauthorized))
				return
			}
			if !hmac.Equal(signature, signDelivery(secret, r, body, timestampValue, nonce)) {
				httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "signature verification failed", http.StatusUnauthorized))
				return
			}

			if v.nonces == nil {
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "nonce store unavailable", http.StatusServiceUnavailable))
				return
			}
			expiry := timestamp.Add(v.nonceTTL)
			if expiry.Before(v.now()) {
				expiry = v.now().Add(v.nonceTTL)
			}
			fresh, err := v.nonces.UseNonce(ctx, partner, nonce, expiry)
			if err != nil {
				v.logger.Printf("auth: nonce store error: %v", err)
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "nonce storage error", http.StatusServiceUnavailable))
				return
			}
			if !fresh {
				httpx.WriteError(ctx, w, httpx.NewError("nonce_replay", "duplicate signature nonce", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireHMACResolver picks the partner secret per request, typically from
// the URL's provider segment.
func (v *HMACValidator) RequireHMACResolver(resolver func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("verification_unavailable", "webhook secret resolver not configured", http.StatusServiceUnavailable))
				return
			}
			partner, ok := resolver(r)
			if !ok || strings.TrimSpace(partner) == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("unknown_provider", "webhook provider not recognised", http.StatusUnauthorized))
				return
			}
			v.RequireHMAC(partner)(next).ServeHTTP(w, r)
		})
	}
}

func (v *HMACValidator) partnerSecret(ctx context.Context, name string) ([]byte, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}
	if cached, ok := v.secrets.Load(name); ok {
		if secret, ok := cached.([]byte); ok && len(secret) > 0 {
			return secret, nil
		}
	}

	raw, err := v.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	secret := []byte(raw)
	if len(secret) == 0 {
		return nil, errors.New("auth: secret is empty")
	}
	v.secrets.Store(name, secret)
	return secret, nil
}

// bufferBody reads the body and restores it so the handler still sees it.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

// decodeSignature accepts base64 or hex; partners are split on the matter.
func decodeSignature(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be base64 or hex encoded")
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return time.Time{}, errors.New("auth: unable to parse signature timestamp")
}

func signDelivery(secret []byte, r *http.Request, body []byte, timestamp, nonce string) []byte {
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	bodyHash := sha256.Sum256(body)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.ToUpper(r.Method)))
	mac.Write([]byte("\n"))
	mac.Write([]byte(path))
	mac.Write([]byte("\n"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write([]byte(nonce))
	mac.Write([]byte("\n"))
	mac.Write([]byte(hex.EncodeToString(bodyHash[:])))
	return mac.Sum(nil)
}
