package domain

import "time"

// ShippingRule holds the store-wide shipping configuration. A
// FreeShippingThreshold of zero disables the free-shipping rule rather than
// making every order ship free.
type ShippingRule struct {
	DefaultRate           int64
	FreeShippingThreshold int64
}

// StoreSettings groups the admin-managed settings read by pricing call sites.
// Settings are always passed explicitly into pricing calls, never consulted
// as ambient state.
type StoreSettings struct {
	Currency     string
	ShippingRule ShippingRule
	UpdatedAt    time.Time
}

// HomepageSection is an admin-managed CMS block rendered on the storefront
// landing page. BodyHTML is sanitised before persistence.
type HomepageSection struct {
	ID         string
	Title      string
	Kind       string
	BodyHTML   string
	ProductIDs []string
	Position   int
	IsVisible  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
