package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists per-user address books as a subcollection under
// the user document.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs the Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// Upsert writes the address document under its ID.
func (r *AddressRepository) Upsert(ctx context.Context, userID string, address domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(address.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(id).Set(ctx, encodeAddressDocument(address)); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.upsert", err)
	}
	saved := address
	saved.ID = id
	return saved, nil
}

// Delete removes the address document. The document must exist.
func (r *AddressRepository) Delete(ctx context.Context, userID string, addressID string) error {
	if _, err := r.FindByID(ctx, userID, addressID); err != nil {
		return err
	}
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := coll.Doc(strings.TrimSpace(addressID)).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// FindByID loads one address-book entry.
func (r *AddressRepository) FindByID(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.findById", err)
	}
	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("address repository: decode %s: %w", id, err)
	}
	return decodeAddressDocument(snap.Ref.ID, doc), nil
}

// ListByUser returns the user's address book, default entry first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("isDefault", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var addresses []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("address repository: decode %s: %w", snap.Ref.ID, err)
		}
		addresses = append(addresses, decodeAddressDocument(snap.Ref.ID, doc))
	}
	return addresses, nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

type addressDocument struct {
	ID         string  `firestore:"id,omitempty"`
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
	IsDefault  bool    `firestore:"isDefault"`
}

func encodeAddressDocument(address domain.Address) addressDocument {
	return addressDocument{
		ID:         strings.TrimSpace(address.ID),
		Recipient:  address.Recipient,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
		IsDefault:  address.IsDefault,
	}
}

func decodeAddressDocument(id string, doc addressDocument) domain.Address {
	if strings.TrimSpace(id) == "" {
		id = doc.ID
	}
	return domain.Address{
		ID:         id,
		Recipient:  doc.Recipient,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
		IsDefault:  doc.IsDefault,
	}
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
