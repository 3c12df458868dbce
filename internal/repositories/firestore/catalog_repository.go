package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/storelane/api/internal/domain"
	pfirestore "github.com/storelane/api/internal/platform/firestore"
	"github.com/storelane/api/internal/repositories"
)

const productCollection = "products"

// CatalogRepository reads product documents and applies stock mutations.
type CatalogRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil)
	return &CatalogRepository{provider: provider, base: base}, nil
}

// FindByID loads a single product document.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// UpdateFields applies a partial update to the product document.
func (r *CatalogRepository) UpdateFields(ctx context.Context, productID string, fields map[string]any) error {
	if r == nil || r.base == nil {
		return errors.New("catalog repository not initialised")
	}
	if len(fields) == 0 {
		return nil
	}

	// Deterministic order keeps retries and logs stable.
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(fields)+1)
	for _, path := range paths {
		updates = append(updates, firestore.Update{Path: path, Value: fields[path]})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})

	_, err := r.base.Update(ctx, strings.TrimSpace(productID), updates)
	return err
}

// IncrementField atomically adds delta to a numeric top-level field.
func (r *CatalogRepository) IncrementField(ctx context.Context, productID string, field string, delta int64) error {
	if r == nil || r.base == nil {
		return errors.New("catalog repository not initialised")
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return errors.New("catalog repository: field is required")
	}

	_, err := r.base.Update(ctx, strings.TrimSpace(productID), []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// AdjustVariantStock adds delta to the named variant's count, clamping at zero.
// Variant counts live inside an array field, so the adjustment is a
// transactional read-modify-write of the whole array rather than a field-path
// increment. A missing variant is a no-op.
func (r *CatalogRepository) AdjustVariantStock(ctx context.Context, productID string, variant string, delta int64) error {
	if r == nil || r.provider == nil {
		return errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	variant = strings.TrimSpace(variant)
	if id == "" {
		return errors.New("catalog repository: product id is required")
	}
	if variant == "" || delta == 0 {
		return nil
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", id, err)
		}

		changed := false
		for i := range doc.ColorStocks {
			if doc.ColorStocks[i].Name != variant {
				continue
			}
			next := doc.ColorStocks[i].Stock + delta
			if next < 0 {
				next = 0
			}
			doc.ColorStocks[i].Stock = next
			changed = true
			break
		}
		if !changed {
			return nil
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "colorStocks", Value: doc.ColorStocks},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	return pfirestore.WrapError("products.adjustvariantstock", err)
}

// AdjustStockAtomic validates availability and deducts both the aggregate and
// variant counters inside one transaction. Insufficient stock and unknown
// variants surface as conflict errors so callers can drop the line.
func (r *CatalogRepository) AdjustStockAtomic(ctx context.Context, productID string, variant string, quantity int64) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	variant = strings.TrimSpace(variant)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	if quantity <= 0 {
		return domain.Product{}, errors.New("catalog repository: quantity must be positive")
	}

	const op = "products.adjuststockatomic"

	var product domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", id, err)
		}

		if doc.Stock < quantity {
			return pfirestore.NewConflictError(op, fmt.Errorf("product %s has %d, requested %d", id, doc.Stock, quantity))
		}
		if variant != "" && len(doc.ColorStocks) > 0 {
			idx := -1
			for i := range doc.ColorStocks {
				if doc.ColorStocks[i].Name == variant {
					idx = i
					break
				}
			}
			if idx < 0 {
				return pfirestore.NewConflictError(op, fmt.Errorf("product %s has no variant %q", id, variant))
			}
			if doc.ColorStocks[idx].Stock < quantity {
				return pfirestore.NewConflictError(op, fmt.Errorf("variant %s/%s has %d, requested %d", id, variant, doc.ColorStocks[idx].Stock, quantity))
			}
			doc.ColorStocks[idx].Stock -= quantity
		}

		doc.Stock -= quantity
		doc.InStock = doc.rederiveInStock()
		product = doc.toDomain(id)

		updates := []firestore.Update{
			{Path: "stock", Value: doc.Stock},
			{Path: "inStock", Value: doc.InStock},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}
		if len(doc.ColorStocks) > 0 {
			updates = append(updates, firestore.Update{Path: "colorStocks", Value: doc.ColorStocks})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError(op, err)
	}
	return product, nil
}

type productDocument struct {
	Name        string               `firestore:"name"`
	Image       string               `firestore:"image,omitempty"`
	Price       int64                `firestore:"price"`
	SalePrice   int64                `firestore:"salePrice,omitempty"`
	IsActive    bool                 `firestore:"isActive"`
	InStock     bool                 `firestore:"inStock"`
	Stock       int64                `firestore:"stock"`
	ColorStocks []colorStockDocument `firestore:"colorStocks,omitempty"`
	UpdatedAt   time.Time            `firestore:"updatedAt,omitempty"`
}

// rederiveInStock recomputes the availability flag from the counters.
func (d productDocument) rederiveInStock() bool {
	if d.Stock <= 0 {
		return false
	}
	if len(d.ColorStocks) == 0 {
		return true
	}
	for _, cs := range d.ColorStocks {
		if cs.Stock > 0 {
			return true
		}
	}
	return false
}

type colorStockDocument struct {
	Name  string `firestore:"name"`
	Stock int64  `firestore:"stock"`
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:        id,
		Name:      strings.TrimSpace(d.Name),
		Image:     strings.TrimSpace(d.Image),
		Price:     d.Price,
		SalePrice: d.SalePrice,
		IsActive:  d.IsActive,
		InStock:   d.InStock,
		Stock:     d.Stock,
	}
	if len(d.ColorStocks) > 0 {
		product.ColorStocks = make([]domain.ColorStock, len(d.ColorStocks))
		for i, cs := range d.ColorStocks {
			product.ColorStocks[i] = domain.ColorStock{
				Name:  strings.TrimSpace(cs.Name),
				Stock: cs.Stock,
			}
		}
	}
	return product
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
