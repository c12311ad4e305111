// Package auth authenticates the three kinds of callers the storefront
// serves: shoppers carrying Firebase ID tokens, internal jobs carrying
// Google-signed OIDC tokens, and logistics partners signing webhook
// deliveries with a shared HMAC secret.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Shoppers hold the customer role; staff and admin gate the back-office
// routes.
const (
	RoleUser  = "customer"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// ErrAccountLoaderUnavailable is returned by Identity.Account when the
// authenticator was built without a user getter.
var ErrAccountLoaderUnavailable = errors.New("auth: account loader not configured")

// Identity is the authenticated shopper attached to the request context by
// RequireFirebaseAuth.
type Identity struct {
	UID    string
	Email  string
	Roles  []string
	Locale string

	token *firebaseauth.Token

	loadAccount accountLoader
	loadOnce    sync.Once
	account     *firebaseauth.UserRecord
	accountErr  error
}

type accountLoader func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)

// Token returns the decoded Firebase ID token, nil for identities built in
// tests.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity carries the role, ignoring case.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = canonicalRole(role)
	if role == "" {
		return false
	}
	for _, held := range i.Roles {
		if strings.EqualFold(held, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of the roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// Account fetches the full Firebase user record behind the token. The
// lookup runs once and is shared by every caller on the request.
func (i *Identity) Account(ctx context.Context) (*firebaseauth.UserRecord, error) {
	if i == nil || i.loadAccount == nil {
		return nil, ErrAccountLoaderUnavailable
	}
	i.loadOnce.Do(func() {
		i.account, i.accountErr = i.loadAccount(ctx, i.UID)
	})
	return i.account, i.accountErr
}

type identityKey struct{}

// WithIdentity attaches the shopper identity to the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the shopper identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func canonicalRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
