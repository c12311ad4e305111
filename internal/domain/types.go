package domain

import (
	"time"
)

// Pagination carries the cursor inputs every catalog and order listing
// accepts.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder selects the direction of an ordered listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// CursorPage is one page of a listing plus the token for the next one.
// An empty NextPageToken means the listing is exhausted.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Address is a shipping or billing destination saved on a customer
// account. Optional lines stay nil so handlers can tell "absent" from
// "cleared".
type Address struct {
	ID         string
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
	IsDefault  bool
}

// NotificationPreferences maps a channel name ("order_updates",
// "promotions") to its opt-in flag.
type NotificationPreferences map[string]bool

// UserProfile is the store's view of a shopper, keyed by the Firebase
// Auth UID.
type UserProfile struct {
	ID                string
	DisplayName       string
	Email             string
	PhoneNumber       string
	PhotoURL          string
	PreferredLanguage string
	Roles             []string
	IsActive          bool
	NotificationPrefs NotificationPreferences
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the profile carries the admin role claim.
func (p UserProfile) IsAdmin() bool {
	for _, role := range p.Roles {
		if role == "admin" {
			return true
		}
	}
	return false
}

// Health statuses reported by /healthz and /readyz.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the result of checking one backing dependency
// (Firestore, Pub/Sub, Stripe reachability).
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport rolls the per-dependency checks up into the
// status the health endpoints serve.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
