package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

var (
	// ErrSettingsInvalidInput indicates the caller supplied invalid input.
	ErrSettingsInvalidInput = errors.New("settings service: invalid input")
	// ErrSettingsUnavailable indicates the settings backend cannot be reached.
	ErrSettingsUnavailable = errors.New("settings service: unavailable")
	// ErrSettingsNotFound indicates the requested record does not exist.
	ErrSettingsNotFound = errors.New("settings service: not found")
)

// SettingsServiceDeps wires persistence behind the settings service.
type SettingsServiceDeps struct {
	Settings        repositories.SettingsRepository
	Customizations  repositories.CustomizationConfigRepository
	Sections        repositories.HomepageSectionRepository
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type settingsService struct {
	settings       repositories.SettingsRepository
	customizations repositories.CustomizationConfigRepository
	sections       repositories.HomepageSectionRepository
	now            func() time.Time
	newID          func() string
	currency       string
	logger         func(ctx context.Context, event string, fields map[string]any)
	sanitizer      *bluemonday.Policy
}

// NewSettingsService constructs a SettingsService validating its dependencies.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	if deps.Customizations == nil {
		return nil, errors.New("settings service: customization repository is required")
	}
	if deps.Sections == nil {
		return nil, errors.New("settings service: section repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &settingsService{
		settings:       deps.Settings,
		customizations: deps.Customizations,
		sections:       deps.Sections,
		now:            func() time.Time { return clock().UTC() },
		newID:          idGen,
		currency:       currency,
		logger:         logger,
		sanitizer:      bluemonday.UGCPolicy(),
	}, nil
}

// GetStoreSettings returns the store settings, falling back to defaults when
// nothing has been saved yet. Shipping defaults to zero rate, meaning free
// shipping until an admin configures one.
func (s *settingsService) GetStoreSettings(ctx context.Context) (StoreSettings, error) {
	if s == nil || s.settings == nil {
		return StoreSettings{}, ErrSettingsUnavailable
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.StoreSettings{Currency: s.currency}, nil
		}
		return StoreSettings{}, ErrSettingsUnavailable
	}
	if strings.TrimSpace(settings.Currency) == "" {
		settings.Currency = s.currency
	}
	return settings, nil
}

// UpdateShippingRule replaces the store-wide shipping configuration.
func (s *settingsService) UpdateShippingRule(ctx context.Context, cmd UpdateShippingRuleCommand) (StoreSettings, error) {
	if s == nil || s.settings == nil {
		return StoreSettings{}, ErrSettingsUnavailable
	}
	if cmd.DefaultRate < 0 {
		return StoreSettings{}, fmt.Errorf("%w: default rate cannot be negative", ErrSettingsInvalidInput)
	}
	if cmd.FreeShippingThreshold < 0 {
		return StoreSettings{}, fmt.Errorf("%w: free shipping threshold cannot be negative", ErrSettingsInvalidInput)
	}

	settings, err := s.GetStoreSettings(ctx)
	if err != nil {
		return StoreSettings{}, err
	}
	settings.ShippingRule = domain.ShippingRule{
		DefaultRate:           cmd.DefaultRate,
		FreeShippingThreshold: cmd.FreeShippingThreshold,
	}
	settings.UpdatedAt = s.now()

	saved, err := s.settings.Save(ctx, settings)
	if err != nil {
		return StoreSettings{}, ErrSettingsUnavailable
	}
	s.logger(ctx, "settings.shipping_rule_updated", map[string]any{
		"defaultRate": cmd.DefaultRate,
		"threshold":   cmd.FreeShippingThreshold,
		"actor":       cmd.Actor,
	})
	return saved, nil
}

// ListCustomizations returns all customization definitions ordered by position.
func (s *settingsService) ListCustomizations(ctx context.Context) ([]CustomizationConfig, error) {
	if s == nil || s.customizations == nil {
		return nil, ErrSettingsUnavailable
	}
	configs, err := s.customizations.List(ctx)
	if err != nil {
		return nil, ErrSettingsUnavailable
	}
	return configs, nil
}

// ListCustomizationsFor returns the definitions applying to one product type.
func (s *settingsService) ListCustomizationsFor(ctx context.Context, productType string) ([]CustomizationConfig, error) {
	configs, err := s.ListCustomizations(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]CustomizationConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.AppliesTo(productType) {
			matched = append(matched, cfg)
		}
	}
	return matched, nil
}

// UpsertCustomization creates or updates a customization definition.
func (s *settingsService) UpsertCustomization(ctx context.Context, cmd UpsertCustomizationCommand) (CustomizationConfig, error) {
	if s == nil || s.customizations == nil {
		return CustomizationConfig{}, ErrSettingsUnavailable
	}
	label := strings.TrimSpace(cmd.Label)
	if label == "" {
		return CustomizationConfig{}, fmt.Errorf("%w: label is required", ErrSettingsInvalidInput)
	}
	if !cmd.Type.IsValid() {
		return CustomizationConfig{}, fmt.Errorf("%w: unknown customization type %q", ErrSettingsInvalidInput, cmd.Type)
	}
	if cmd.Type.CarriesOptions() && len(cmd.Options) == 0 {
		return CustomizationConfig{}, fmt.Errorf("%w: %s customizations need at least one option", ErrSettingsInvalidInput, cmd.Type)
	}

	options := make([]domain.CustomizationOption, 0, len(cmd.Options))
	seen := make(map[string]struct{}, len(cmd.Options))
	for _, opt := range cmd.Options {
		value := strings.TrimSpace(opt.Value)
		if value == "" {
			return CustomizationConfig{}, fmt.Errorf("%w: option value is required", ErrSettingsInvalidInput)
		}
		if _, dup := seen[value]; dup {
			return CustomizationConfig{}, fmt.Errorf("%w: duplicate option value %q", ErrSettingsInvalidInput, value)
		}
		seen[value] = struct{}{}
		options = append(options, domain.CustomizationOption{
			Value:       value,
			Label:       firstNonEmpty(opt.Label, value),
			PriceChange: opt.PriceChange,
		})
	}

	productTypes := make([]string, 0, len(cmd.ProductTypes))
	for _, pt := range cmd.ProductTypes {
		if trimmed := strings.TrimSpace(pt); trimmed != "" {
			productTypes = append(productTypes, trimmed)
		}
	}

	cfg := domain.CustomizationConfig{
		ID:           firstNonEmpty(cmd.ConfigID, s.newID()),
		Label:        label,
		Type:         cmd.Type,
		Options:      options,
		ProductTypes: productTypes,
		Position:     cmd.Position,
		UpdatedAt:    s.now(),
	}
	saved, err := s.customizations.Upsert(ctx, cfg)
	if err != nil {
		return CustomizationConfig{}, ErrSettingsUnavailable
	}
	s.logger(ctx, "settings.customization_upserted", map[string]any{"configId": saved.ID, "actor": cmd.Actor})
	return saved, nil
}

// DeleteCustomization removes a customization definition. Existing cart
// selections referencing it simply stop carrying a price effect.
func (s *settingsService) DeleteCustomization(ctx context.Context, configID string, actor string) error {
	if s == nil || s.customizations == nil {
		return ErrSettingsUnavailable
	}
	id := strings.TrimSpace(configID)
	if id == "" {
		return ErrSettingsInvalidInput
	}
	if err := s.customizations.Delete(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return ErrSettingsNotFound
		}
		return ErrSettingsUnavailable
	}
	s.logger(ctx, "settings.customization_deleted", map[string]any{"configId": id, "actor": actor})
	return nil
}

// ListHomepageSections lists landing-page blocks ordered by position.
func (s *settingsService) ListHomepageSections(ctx context.Context, onlyVisible bool) ([]HomepageSection, error) {
	if s == nil || s.sections == nil {
		return nil, ErrSettingsUnavailable
	}
	sections, err := s.sections.List(ctx, onlyVisible)
	if err != nil {
		return nil, ErrSettingsUnavailable
	}
	return sections, nil
}

// UpsertHomepageSection creates or updates a landing-page block. Body HTML is
// sanitised before storage.
func (s *settingsService) UpsertHomepageSection(ctx context.Context, cmd UpsertHomepageSectionCommand) (HomepageSection, error) {
	if s == nil || s.sections == nil {
		return HomepageSection{}, ErrSettingsUnavailable
	}
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return HomepageSection{}, fmt.Errorf("%w: title is required", ErrSettingsInvalidInput)
	}
	kind := strings.TrimSpace(cmd.Kind)
	if kind == "" {
		return HomepageSection{}, fmt.Errorf("%w: kind is required", ErrSettingsInvalidInput)
	}

	productIDs := make([]string, 0, len(cmd.ProductIDs))
	for _, id := range cmd.ProductIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			productIDs = append(productIDs, trimmed)
		}
	}

	section := domain.HomepageSection{
		ID:         firstNonEmpty(cmd.SectionID, s.newID()),
		Title:      title,
		Kind:       kind,
		BodyHTML:   s.sanitizer.Sanitize(strings.TrimSpace(cmd.BodyHTML)),
		ProductIDs: productIDs,
		Position:   cmd.Position,
		IsVisible:  cmd.IsVisible,
		UpdatedAt:  s.now(),
	}
	saved, err := s.sections.Upsert(ctx, section)
	if err != nil {
		return HomepageSection{}, ErrSettingsUnavailable
	}
	s.logger(ctx, "settings.section_upserted", map[string]any{"sectionId": saved.ID, "actor": cmd.Actor})
	return saved, nil
}

// DeleteHomepageSection removes a landing-page block.
func (s *settingsService) DeleteHomepageSection(ctx context.Context, sectionID string, actor string) error {
	if s == nil || s.sections == nil {
		return ErrSettingsUnavailable
	}
	id := strings.TrimSpace(sectionID)
	if id == "" {
		return ErrSettingsInvalidInput
	}
	if err := s.sections.Delete(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return ErrSettingsNotFound
		}
		return ErrSettingsUnavailable
	}
	s.logger(ctx, "settings.section_deleted", map[string]any{"sectionId": id, "actor": actor})
	return nil
}
