package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

const maxAddressBookSize = 20

var (
	// ErrUserInvalidInput indicates the caller supplied invalid input.
	ErrUserInvalidInput = errors.New("user service: invalid input")
	// ErrUserUnavailable indicates the user backend cannot be reached.
	ErrUserUnavailable = errors.New("user service: unavailable")
	// ErrUserNotFound indicates the requested user or address does not exist.
	ErrUserNotFound = errors.New("user service: not found")
)

// UserServiceDeps wires persistence behind the user service.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users     repositories.UserRepository
	addresses repositories.AddressRepository
	now       func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewUserService constructs a UserService validating its dependencies.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &userService{
		users:     deps.Users,
		addresses: deps.Addresses,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// GetProfile loads the profile projection for the user.
func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	if s == nil || s.users == nil {
		return UserProfile{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	profile, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}
	return profile, nil
}

// UpdateProfile applies the supplied field updates. Nil pointers leave the
// field unchanged.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	if s == nil || s.users == nil {
		return UserProfile{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}

	profile, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}

	if cmd.DisplayName != nil {
		name := strings.TrimSpace(*cmd.DisplayName)
		if name == "" {
			return UserProfile{}, fmt.Errorf("%w: display name cannot be empty", ErrUserInvalidInput)
		}
		profile.DisplayName = name
	}
	if cmd.PhoneNumber != nil {
		profile.PhoneNumber = strings.TrimSpace(*cmd.PhoneNumber)
	}
	if cmd.PreferredLanguage != nil {
		lang := strings.TrimSpace(*cmd.PreferredLanguage)
		if lang == "" {
			profile.PreferredLanguage = ""
		} else {
			tag, err := language.Parse(lang)
			if err != nil {
				return UserProfile{}, fmt.Errorf("%w: preferred language must be a BCP 47 tag", ErrUserInvalidInput)
			}
			profile.PreferredLanguage = tag.String()
		}
	}
	if cmd.NotificationPrefs != nil {
		if profile.NotificationPrefs == nil {
			profile.NotificationPrefs = domain.NotificationPreferences{}
		}
		for channel, enabled := range cmd.NotificationPrefs {
			profile.NotificationPrefs[strings.TrimSpace(channel)] = enabled
		}
	}
	profile.UpdatedAt = s.now()

	saved, err := s.users.Upsert(ctx, profile)
	if err != nil {
		return UserProfile{}, ErrUserUnavailable
	}
	return saved, nil
}

// ListAddresses lists the user's address book, default first.
func (s *userService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	if s == nil || s.addresses == nil {
		return nil, ErrUserUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrUserInvalidInput
	}
	addresses, err := s.addresses.ListByUser(ctx, uid)
	if err != nil {
		return nil, ErrUserUnavailable
	}
	return addresses, nil
}

// UpsertAddress creates or updates an address-book entry. Marking an entry
// as default demotes the previous default.
func (s *userService) UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error) {
	if s == nil || s.addresses == nil {
		return Address{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Address{}, ErrUserInvalidInput
	}
	address, err := normaliseAddress(cmd.Address)
	if err != nil {
		return Address{}, err
	}

	existing, err := s.addresses.ListByUser(ctx, uid)
	if err != nil {
		return Address{}, ErrUserUnavailable
	}

	address.ID = strings.TrimSpace(cmd.AddressID)
	isNew := address.ID == ""
	if isNew {
		if len(existing) >= maxAddressBookSize {
			return Address{}, fmt.Errorf("%w: address book holds at most %d entries", ErrUserInvalidInput, maxAddressBookSize)
		}
		address.ID = s.newID()
		// The first entry becomes the default automatically.
		if len(existing) == 0 {
			address.IsDefault = true
		}
	} else {
		found := false
		for _, entry := range existing {
			if entry.ID == address.ID {
				found = true
				break
			}
		}
		if !found {
			return Address{}, ErrUserNotFound
		}
	}

	if address.IsDefault {
		for _, entry := range existing {
			if entry.IsDefault && entry.ID != address.ID {
				entry.IsDefault = false
				if _, err := s.addresses.Upsert(ctx, uid, entry); err != nil {
					return Address{}, ErrUserUnavailable
				}
			}
		}
	}

	saved, err := s.addresses.Upsert(ctx, uid, address)
	if err != nil {
		return Address{}, ErrUserUnavailable
	}
	s.logger(ctx, "user.address_upserted", map[string]any{"userID": uid, "addressId": saved.ID})
	return saved, nil
}

// DeleteAddress removes an address-book entry.
func (s *userService) DeleteAddress(ctx context.Context, userID string, addressID string) error {
	if s == nil || s.addresses == nil {
		return ErrUserUnavailable
	}
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(addressID)
	if uid == "" || id == "" {
		return ErrUserInvalidInput
	}
	if err := s.addresses.Delete(ctx, uid, id); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "user.address_deleted", map[string]any{"userID": uid, "addressId": id})
	return nil
}

// ListUsers lists profiles for the admin surface.
func (s *userService) ListUsers(ctx context.Context, filter UserListFilter) (domain.CursorPage[UserProfile], error) {
	if s == nil || s.users == nil {
		return domain.CursorPage[UserProfile]{}, ErrUserUnavailable
	}
	page, err := s.users.List(ctx, repositories.UserListFilter{
		OnlyActive: filter.OnlyActive,
		Search:     strings.TrimSpace(filter.Search),
		Pager:      filter.Pager,
	})
	if err != nil {
		return domain.CursorPage[UserProfile]{}, ErrUserUnavailable
	}
	return page, nil
}

// SetUserActive toggles a user's active flag. Deactivated users keep their
// data but can no longer sign in.
func (s *userService) SetUserActive(ctx context.Context, cmd SetUserActiveCommand) (UserProfile, error) {
	if s == nil || s.users == nil {
		return UserProfile{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return UserProfile{}, ErrUserInvalidInput
	}
	saved, err := s.users.SetActive(ctx, uid, cmd.Active, s.now())
	if err != nil {
		return UserProfile{}, s.translateRepoError(err)
	}
	s.logger(ctx, "user.active_toggled", map[string]any{
		"userID": uid,
		"active": cmd.Active,
		"actor":  cmd.Actor,
	})
	return saved, nil
}

func (s *userService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrUserNotFound
	default:
		return ErrUserUnavailable
	}
}

func normaliseAddress(address Address) (Address, error) {
	address.Recipient = strings.TrimSpace(address.Recipient)
	address.Line1 = strings.TrimSpace(address.Line1)
	address.City = strings.TrimSpace(address.City)
	address.PostalCode = strings.TrimSpace(address.PostalCode)
	address.Country = strings.ToUpper(strings.TrimSpace(address.Country))
	if address.Recipient == "" || address.Line1 == "" || address.City == "" || address.PostalCode == "" {
		return Address{}, fmt.Errorf("%w: recipient, line1, city, and postal code are required", ErrUserInvalidInput)
	}
	if len(address.Country) != 2 {
		return Address{}, fmt.Errorf("%w: country must be a two-letter code", ErrUserInvalidInput)
	}
	if address.Line2 != nil {
		line2 := strings.TrimSpace(*address.Line2)
		if line2 == "" {
			address.Line2 = nil
		} else {
			address.Line2 = &line2
		}
	}
	if address.State != nil {
		state := strings.TrimSpace(*address.State)
		if state == "" {
			address.State = nil
		} else {
			address.State = &state
		}
	}
	if address.Phone != nil {
		phone := strings.TrimSpace(*address.Phone)
		if phone == "" {
			address.Phone = nil
		} else {
			address.Phone = &phone
		}
	}
	return address, nil
}
