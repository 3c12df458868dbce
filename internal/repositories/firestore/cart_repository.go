package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/storelane/api/internal/domain"
	pfirestore "github.com/storelane/api/internal/platform/firestore"
	"github.com/storelane/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists the per-user pending cart keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil)
	return &CartRepository{base: base}, nil
}

// Get loads the cart document for the given user.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Put replaces the user's cart document.
func (r *CartRepository) Put(ctx context.Context, cart domain.Cart) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}

	updatedAt := cart.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	doc := cartDocument{
		Items:     make([]cartItemDocument, 0, len(cart.Items)),
		UpdatedAt: updatedAt,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			Variant:   strings.TrimSpace(item.Variant),
		})
	}

	_, err := r.base.Set(ctx, uid, doc)
	return err
}

// Clear removes the user's cart document. Clearing a missing cart is not an error.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Delete(ctx, uid)
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int64  `firestore:"quantity"`
	Variant   string `firestore:"variant,omitempty"`
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	cart := domain.Cart{
		UserID:    userID,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			Variant:   strings.TrimSpace(item.Variant),
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
