// Package idempotency makes the checkout endpoints safe to retry: a client
// that resends a mutating request with the same Idempotency-Key gets the
// stored response back instead of placing a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a completed response stays replayable.
const DefaultTTL = 24 * time.Hour

// Status tracks a record through its lifecycle.
type Status string

const (
	// StatusPending means a request holds the key but has not finished.
	StatusPending Status = "pending"
	// StatusCompleted means the response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ClaimState is the outcome of claiming a key for a request.
type ClaimState int

const (
	// ClaimAccepted: the key is fresh, the request may proceed.
	ClaimAccepted ClaimState = iota
	// ClaimReplay: a completed response exists and should be replayed.
	ClaimReplay
	// ClaimInFlight: another request holds the key right now.
	ClaimInFlight
)

// Claim is the result of Reserve: the state plus the stored record when one
// exists.
type Claim struct {
	State  ClaimState
	Record Record
}

// Record is the persisted form of a claimed key and its response.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the handler output captured for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists claims and responses. Reserve must be atomic: two
// concurrent requests with the same key must not both see ClaimAccepted.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch signals a key reused for a materially different
// request, which is a client bug rather than a retry.
var ErrFingerprintMismatch = errors.New("idempotency: key reused for a different request")

// docID derives the stable document name for a scoped key. Hashing keeps
// arbitrary client keys valid as Firestore document IDs.
func docID(key string) string {
	return hashHex([]byte(strings.TrimSpace(key)))
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies the response headers worth replaying, dropping
// hop-by-hop and freshness headers that only make sense on the original
// response.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		switch strings.ToLower(name) {
		case "content-length", "date", "connection", "keep-alive",
			"proxy-authenticate", "proxy-authorization", "te", "trailers",
			"transfer-encoding", "upgrade":
			continue
		}
		kept[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
