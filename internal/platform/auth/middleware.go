package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/fluteatelier/api/internal/platform/httpx"
)

// Custom claims set on the Firebase account by the back office.
const (
	roleClaim   = "role"
	localeClaim = "locale"
	emailClaim  = "email"

	verifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals an expired Firebase ID token.
	ErrTokenExpired = errors.New("auth: id token expired")
	// ErrTokenInvalid signals a Firebase ID token rejected for any other reason.
	ErrTokenInvalid = errors.New("auth: id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserGetter loads Firebase account records.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// Authenticator turns Firebase token verification into chi middleware.
type Authenticator struct {
	verifier TokenVerifier
	accounts UserGetter
}

type Option func(*Authenticator)

// WithUserGetter lets handlers lazily load the full account record through
// Identity.Account.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) { a.accounts = getter }
}

func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the bearer token and, when roles are given,
// rejects identities that hold none of them. A token without a role claim is
// treated as a plain shopper.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = canonicalRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if a == nil || a.verifier == nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}

			verifyCtx, cancel := context.WithTimeout(r.Context(), verifyTimeout)
			token, err := a.verifier.VerifyIDToken(verifyCtx, tokenStr)
			cancel()
			if err != nil {
				writeVerifyError(r.Context(), w, err)
				return
			}

			identity := &Identity{
				UID:    token.UID,
				Email:  stringClaim(token.Claims, emailClaim),
				Locale: stringClaim(token.Claims, localeClaim),
				Roles:  rolesFromClaim(token.Claims[roleClaim]),
				token:  token,
			}
			if len(identity.Roles) == 0 {
				identity.Roles = []string{RoleUser}
			}

			if len(allowed) > 0 && !holdsAllowedRole(identity.Roles, allowed) {
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusUnauthorized))
				return
			}

			if a.accounts != nil {
				identity.loadAccount = func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
					if uid == "" {
						uid = identity.UID
					}
					ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
					defer cancel()
					return a.accounts.GetUser(ctx, uid)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func holdsAllowedRole(held []string, allowed map[string]struct{}) bool {
	for _, role := range held {
		if _, ok := allowed[canonicalRole(role)]; ok {
			return true
		}
	}
	return false
}

// rolesFromClaim accepts the shapes the back office has written over time:
// a single string, a list, or a role->bool map.
func rolesFromClaim(raw any) []string {
	appendRole := func(out []string, role string) []string {
		role = canonicalRole(role)
		if role == "" {
			return out
		}
		for _, existing := range out {
			if existing == role {
				return out
			}
		}
		return append(out, role)
	}

	switch v := raw.(type) {
	case string:
		return appendRole(nil, v)
	case []string:
		var out []string
		for _, role := range v {
			out = appendRole(out, role)
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			if role, ok := item.(string); ok {
				out = appendRole(out, role)
			}
		}
		return out
	case map[string]any:
		var out []string
		for role, granted := range v {
			if on, ok := granted.(bool); ok && on {
				out = appendRole(out, role)
			}
		}
		return out
	default:
		return nil
	}
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeVerifyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "id token expired", http.StatusUnauthorized))
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "id token invalid", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "id token verification failed", http.StatusUnauthorized))
	}
}
