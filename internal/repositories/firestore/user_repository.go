package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists user profile projections keyed by the auth UID.
type UserRepository struct {
	coll *pfirestore.Collection[userDocument]
}

// NewUserRepository constructs the Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		coll: pfirestore.NewCollection[userDocument](provider, userCollection),
	}, nil
}

// Upsert writes the full profile document.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	uid := strings.TrimSpace(profile.ID)
	if uid == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}
	result, err := r.coll.Set(ctx, uid, encodeUserDocument(profile))
	if err != nil {
		return domain.UserProfile{}, err
	}
	saved := profile
	saved.ID = uid
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID loads a profile by auth UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUserDocument(doc.ID, doc.Data), nil
}

// List pages through user profiles for the admin surface, newest first.
// Search matches case-insensitive email prefixes.
func (r *UserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserProfile], error) {
	limit := filter.Pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pager.PageToken); token != "" {
		ts, id, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.UserProfile]{}, fmt.Errorf("user repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OnlyActive {
			q = q.Where("isActive", "==", true)
		}
		if search != "" {
			return q.Where("emailLower", ">=", search).
				Where("emailLower", "<", search+"").
				OrderBy("emailLower", firestore.Asc).
				Limit(fetchLimit)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.UserProfile]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit && search == "" {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeUserDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.UserProfile]{Items: items, NextPageToken: nextToken}, nil
}

// SetActive flips the active flag without touching the rest of the profile.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool, updatedAt time.Time) (domain.UserProfile, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}
	if _, err := r.coll.Update(ctx, uid, []firestore.Update{
		{Path: "isActive", Value: active},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}); err != nil {
		return domain.UserProfile{}, err
	}
	return r.FindByID(ctx, uid)
}

type userDocument struct {
	DisplayName       string          `firestore:"displayName,omitempty"`
	Email             string          `firestore:"email,omitempty"`
	EmailLower        string          `firestore:"emailLower,omitempty"`
	PhoneNumber       string          `firestore:"phoneNumber,omitempty"`
	PhotoURL          string          `firestore:"photoUrl,omitempty"`
	PreferredLanguage string          `firestore:"preferredLanguage,omitempty"`
	Roles             []string        `firestore:"roles,omitempty"`
	IsActive          bool            `firestore:"isActive"`
	NotificationPrefs map[string]bool `firestore:"notificationPrefs,omitempty"`
	CreatedAt         time.Time       `firestore:"createdAt"`
	UpdatedAt         time.Time       `firestore:"updatedAt"`
}

func encodeUserDocument(profile domain.UserProfile) userDocument {
	return userDocument{
		DisplayName:       profile.DisplayName,
		Email:             profile.Email,
		EmailLower:        strings.ToLower(profile.Email),
		PhoneNumber:       profile.PhoneNumber,
		PhotoURL:          profile.PhotoURL,
		PreferredLanguage: profile.PreferredLanguage,
		Roles:             profile.Roles,
		IsActive:          profile.IsActive,
		NotificationPrefs: map[string]bool(profile.NotificationPrefs),
		CreatedAt:         profile.CreatedAt.UTC(),
		UpdatedAt:         profile.UpdatedAt.UTC(),
	}
}

func decodeUserDocument(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:                id,
		DisplayName:       doc.DisplayName,
		Email:             doc.Email,
		PhoneNumber:       doc.PhoneNumber,
		PhotoURL:          doc.PhotoURL,
		PreferredLanguage: doc.PreferredLanguage,
		Roles:             doc.Roles,
		IsActive:          doc.IsActive,
		NotificationPrefs: domain.NotificationPreferences(doc.NotificationPrefs),
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
