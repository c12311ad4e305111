package domain

import (
	"strings"
	"time"
)

// Product describes a storefront catalog entry. Monetary fields are stored in
// the smallest currency unit.
type Product struct {
	ID                   string
	Slug                 string
	Name                 string
	Description          string
	ProductType          string
	Price                int64
	MRP                  int64
	ShippingCostOverride int64
	Images               []string
	Stock                int
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasMRP reports whether a list price was set for the product. A zero MRP
// means "not set", never "free".
func (p Product) HasMRP() bool {
	return p.MRP > 0
}

// CustomizationType enumerates the supported customization input widgets.
type CustomizationType string

const (
	// CustomizationTypeRadio renders mutually exclusive options.
	CustomizationTypeRadio CustomizationType = "radio"
	// CustomizationTypeSelect renders a dropdown of options.
	CustomizationTypeSelect CustomizationType = "select"
	// CustomizationTypeCheckbox renders a boolean toggle.
	CustomizationTypeCheckbox CustomizationType = "checkbox"
	// CustomizationTypeText renders a single-line free text input.
	CustomizationTypeText CustomizationType = "text"
	// CustomizationTypeTextarea renders a multi-line free text input.
	CustomizationTypeTextarea CustomizationType = "textarea"
	// CustomizationTypeMultiSelect renders a multi-slot selector (e.g. colors).
	CustomizationTypeMultiSelect CustomizationType = "multi_select"
)

// IsValid reports whether the value is a known customization type.
func (t CustomizationType) IsValid() bool {
	switch t {
	case CustomizationTypeRadio, CustomizationTypeSelect, CustomizationTypeCheckbox,
		CustomizationTypeText, CustomizationTypeTextarea, CustomizationTypeMultiSelect:
		return true
	default:
		return false
	}
}

// CarriesOptions reports whether the customization type exposes a priced
// option list. Only these types may affect an item's effective price.
func (t CustomizationType) CarriesOptions() bool {
	return t == CustomizationTypeRadio || t == CustomizationTypeSelect
}

// CustomizationOption is one selectable value within an options-bearing
// customization. PriceChange is added to the product's base price when the
// option is selected.
type CustomizationOption struct {
	Value       string
	Label       string
	PriceChange int64
}

// CustomizationConfig is an admin-managed product customization definition.
// An empty ProductTypes set means the customization applies to every product.
type CustomizationConfig struct {
	ID           string
	Label        string
	Type         CustomizationType
	Options      []CustomizationOption
	ProductTypes []string
	Position     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AppliesTo reports whether the customization is offered for the given
// product type.
func (c CustomizationConfig) AppliesTo(productType string) bool {
	if len(c.ProductTypes) == 0 {
		return true
	}
	for _, t := range c.ProductTypes {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(productType)) {
			return true
		}
	}
	return false
}

// FindOption returns the option matching the supplied value, if any.
func (c CustomizationConfig) FindOption(value string) (CustomizationOption, bool) {
	for _, opt := range c.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return CustomizationOption{}, false
}
