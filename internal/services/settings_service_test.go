package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fluteatelier/api/internal/domain"
)

func newTestSettingsService(t *testing.T, settings *stubSettingsRepository, customizations *stubCustomizationRepository, sections *stubSectionRepository) SettingsService {
	t.Helper()
	if settings == nil {
		settings = &stubSettingsRepository{}
	}
	if customizations == nil {
		customizations = &stubCustomizationRepository{}
	}
	if sections == nil {
		sections = &stubSectionRepository{}
	}
	service, err := NewSettingsService(SettingsServiceDeps{
		Settings:        settings,
		Customizations:  customizations,
		Sections:        sections,
		Clock:           func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator:     func() string { return "cfg-new" },
		DefaultCurrency: "inr",
	})
	if err != nil {
		t.Fatalf("unexpected error constructing settings service: %v", err)
	}
	return service
}

func TestSettingsServiceGetStoreSettingsDefaults(t *testing.T) {
	service := newTestSettingsService(t, nil, nil, nil)

	settings, err := service.GetStoreSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Currency != "INR" {
		t.Fatalf("expected default currency INR, got %q", settings.Currency)
	}
	if settings.ShippingRule.DefaultRate != 0 {
		t.Fatalf("expected free shipping by default, got %d", settings.ShippingRule.DefaultRate)
	}
}

func TestSettingsServiceUpdateShippingRule(t *testing.T) {
	var saved domain.StoreSettings
	settings := &stubSettingsRepository{
		saveFunc: func(ctx context.Context, s domain.StoreSettings) (domain.StoreSettings, error) {
			saved = s
			return s, nil
		},
	}
	service := newTestSettingsService(t, settings, nil, nil)

	result, err := service.UpdateShippingRule(context.Background(), UpdateShippingRuleCommand{
		Actor:                 "admin-1",
		DefaultRate:           9900,
		FreeShippingThreshold: 500000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ShippingRule.DefaultRate != 9900 || saved.ShippingRule.FreeShippingThreshold != 500000 {
		t.Fatalf("unexpected persisted rule %+v", saved.ShippingRule)
	}
	if result.Currency != "INR" {
		t.Fatalf("expected currency backfilled, got %q", result.Currency)
	}

	if _, err := service.UpdateShippingRule(context.Background(), UpdateShippingRuleCommand{DefaultRate: -1}); !errors.Is(err, ErrSettingsInvalidInput) {
		t.Fatalf("expected ErrSettingsInvalidInput for negative rate, got %v", err)
	}
}

func TestSettingsServiceUpsertCustomization(t *testing.T) {
	customizations := &stubCustomizationRepository{}
	service := newTestSettingsService(t, nil, customizations, nil)

	cfg, err := service.UpsertCustomization(context.Background(), UpsertCustomizationCommand{
		Label: "Engraving style",
		Type:  domain.CustomizationTypeSelect,
		Options: []domain.CustomizationOption{
			{Value: "floral", PriceChange: 15000},
			{Value: "plain"},
		},
		ProductTypes: []string{"flute"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ID != "cfg-new" {
		t.Fatalf("expected generated id, got %q", cfg.ID)
	}
	if cfg.Options[1].Label != "plain" {
		t.Fatalf("expected option label defaulted to value, got %q", cfg.Options[1].Label)
	}
	if cfg.Options[0].PriceChange != 15000 {
		t.Fatalf("expected price delta kept, got %d", cfg.Options[0].PriceChange)
	}
}

func TestSettingsServiceUpsertCustomizationValidation(t *testing.T) {
	service := newTestSettingsService(t, nil, nil, nil)

	cases := []struct {
		name string
		cmd  UpsertCustomizationCommand
	}{
		{"missing label", UpsertCustomizationCommand{Type: domain.CustomizationTypeText}},
		{"unknown type", UpsertCustomizationCommand{Label: "Finish", Type: domain.CustomizationType("glitter")}},
		{"select without options", UpsertCustomizationCommand{Label: "Finish", Type: domain.CustomizationTypeSelect}},
		{"duplicate option values", UpsertCustomizationCommand{
			Label: "Finish",
			Type:  domain.CustomizationTypeSelect,
			Options: []domain.CustomizationOption{
				{Value: "matte"},
				{Value: "matte"},
			},
		}},
	}
	for _, tc := range cases {
		if _, err := service.UpsertCustomization(context.Background(), tc.cmd); !errors.Is(err, ErrSettingsInvalidInput) {
			t.Fatalf("%s: expected ErrSettingsInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestSettingsServiceListCustomizationsForFiltersByProductType(t *testing.T) {
	customizations := &stubCustomizationRepository{
		listFunc: func(ctx context.Context) ([]domain.CustomizationConfig, error) {
			return []domain.CustomizationConfig{
				{ID: "cfg-1", Label: "Engraving", Type: domain.CustomizationTypeText, ProductTypes: []string{"flute"}},
				{ID: "cfg-2", Label: "Gift wrap", Type: domain.CustomizationTypeCheckbox},
				{ID: "cfg-3", Label: "Strap color", Type: domain.CustomizationTypeMultiSelect, ProductTypes: []string{"accessory"}},
			}, nil
		},
	}
	service := newTestSettingsService(t, nil, customizations, nil)

	matched, err := service.ListCustomizationsFor(context.Background(), "flute")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected flute-scoped and unscoped configs, got %d", len(matched))
	}
	if matched[0].ID != "cfg-1" || matched[1].ID != "cfg-2" {
		t.Fatalf("unexpected configs %q %q", matched[0].ID, matched[1].ID)
	}
}

func TestSettingsServiceUpsertHomepageSectionSanitisesBody(t *testing.T) {
	service := newTestSettingsService(t, nil, nil, &stubSectionRepository{})

	section, err := service.UpsertHomepageSection(context.Background(), UpsertHomepageSectionCommand{
		Title:     "Featured flutes",
		Kind:      "product_grid",
		BodyHTML:  `<p>Handmade</p><script>alert(1)</script>`,
		IsVisible: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(section.BodyHTML, "script") {
		t.Fatalf("expected script stripped, got %q", section.BodyHTML)
	}
	if !strings.Contains(section.BodyHTML, "<p>Handmade</p>") {
		t.Fatalf("expected benign markup kept, got %q", section.BodyHTML)
	}
}

func TestSettingsServiceDeleteCustomizationNotFound(t *testing.T) {
	customizations := &stubCustomizationRepository{
		deleteFunc: func(ctx context.Context, configID string) error {
			return &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestSettingsService(t, nil, customizations, nil)

	if err := service.DeleteCustomization(context.Background(), "cfg-missing", "admin-1"); !errors.Is(err, ErrSettingsNotFound) {
		t.Fatalf("expected ErrSettingsNotFound, got %v", err)
	}
}
