package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storelane/api/internal/repositories"
)

var (
	// ErrStockInvalidInput signals the caller provided invalid data.
	ErrStockInvalidInput = errors.New("stock: invalid input")
	// ErrStockProductNotFound indicates the product could not be located.
	ErrStockProductNotFound = errors.New("stock: product not found")
	// ErrStockProductInactive indicates the product is not purchasable.
	ErrStockProductInactive = errors.New("stock: product inactive")
	// ErrStockUnknownVariant indicates the requested variant does not exist on the product.
	ErrStockUnknownVariant = errors.New("stock: unknown variant")
	// ErrStockInsufficient indicates available stock cannot satisfy the requested quantity.
	ErrStockInsufficient = errors.New("stock: insufficient quantity")
)

// StockServiceDeps bundles collaborators required to construct the stock service.
type StockServiceDeps struct {
	Catalog repositories.CatalogRepository
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type stockService struct {
	catalog repositories.CatalogRepository
	logger  func(context.Context, string, map[string]any)
}

// NewStockService wires dependencies into a concrete StockService implementation.
func NewStockService(deps StockServiceDeps) (StockService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("stock service: catalog repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &stockService{catalog: deps.Catalog, logger: logger}, nil
}

func (s *stockService) ValidateAvailability(product Product, item CartItem) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrStockInvalidInput)
	}
	if !product.IsActive {
		return fmt.Errorf("%w: %s", ErrStockProductInactive, product.ID)
	}

	variant := strings.TrimSpace(item.Variant)
	if variant != "" && product.HasVariants() {
		available, ok := product.VariantStock(variant)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrStockUnknownVariant, product.ID, variant)
		}
		if available < item.Quantity {
			return fmt.Errorf("%w: %s/%s has %d, requested %d", ErrStockInsufficient, product.ID, variant, available, item.Quantity)
		}
		return nil
	}

	if !product.InStock || product.Stock < item.Quantity {
		return fmt.Errorf("%w: %s has %d, requested %d", ErrStockInsufficient, product.ID, product.Stock, item.Quantity)
	}
	return nil
}

// Decrement deducts the aggregate counter and then the variant counter as two
// independent writes. Concurrent checkouts can interleave between the two, so
// the counters may drift under contention; DecrementIfAvailable closes that
// window at the cost of a transaction per line.
func (s *stockService) Decrement(ctx context.Context, item CartItem) error {
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrStockInvalidInput)
	}

	if err := s.catalog.IncrementField(ctx, productID, "stock", -item.Quantity); err != nil {
		return s.mapRepositoryError(err)
	}

	if variant := strings.TrimSpace(item.Variant); variant != "" {
		if err := s.catalog.AdjustVariantStock(ctx, productID, variant, -item.Quantity); err != nil {
			return s.mapRepositoryError(err)
		}
	}

	s.rederiveInStock(ctx, productID)
	return nil
}

func (s *stockService) DecrementIfAvailable(ctx context.Context, item CartItem) (Product, error) {
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if item.Quantity <= 0 {
		return Product{}, fmt.Errorf("%w: quantity must be positive", ErrStockInvalidInput)
	}

	product, err := s.catalog.AdjustStockAtomic(ctx, productID, strings.TrimSpace(item.Variant), item.Quantity)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Product{}, fmt.Errorf("%w: %v", ErrStockInsufficient, err)
		}
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *stockService) Restore(ctx context.Context, item CartItem) error {
	productID := strings.TrimSpace(item.ProductID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrStockInvalidInput)
	}

	if err := s.catalog.IncrementField(ctx, productID, "stock", item.Quantity); err != nil {
		return s.mapRepositoryError(err)
	}
	if variant := strings.TrimSpace(item.Variant); variant != "" {
		if err := s.catalog.AdjustVariantStock(ctx, productID, variant, item.Quantity); err != nil {
			return s.mapRepositoryError(err)
		}
	}

	s.rederiveInStock(ctx, productID)
	return nil
}

// rederiveInStock recomputes the inStock flag from the counters after a
// mutation. The flag is always a post-hoc recompute, never a toggle, and its
// failure degrades only the flag, not the counters themselves.
func (s *stockService) rederiveInStock(ctx context.Context, productID string) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		s.logger(ctx, "stock.instock.recompute.failed", map[string]any{
			"product": productID,
			"error":   err.Error(),
		})
		return
	}

	inStock := product.Stock > 0
	if inStock && product.HasVariants() {
		anyVariant := false
		for _, cs := range product.ColorStocks {
			if cs.Stock > 0 {
				anyVariant = true
				break
			}
		}
		inStock = anyVariant
	}
	if inStock == product.InStock {
		return
	}

	if err := s.catalog.UpdateFields(ctx, productID, map[string]any{"inStock": inStock}); err != nil {
		s.logger(ctx, "stock.instock.recompute.failed", map[string]any{
			"product": productID,
			"error":   err.Error(),
		})
	}
}

func (s *stockService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrStockProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("stock: repository unavailable: %w", err)
		}
	}
	return err
}
