// Package catalog owns the product records and every stock mutation path.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/feed"
	"saleshub/backend/internal/store"
)

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// Watch streams the full catalog: one snapshot on subscribe, another per
// mutation, conflated to the latest. The channel closes on ctx cancel.
func (s *Service) Watch(ctx context.Context) <-chan []domain.Product {
	return s.repo.WatchProducts(ctx)
}

func (s *Service) Register(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Description = strings.TrimSpace(draft.Description)

	if draft.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrValidation)
	}
	// Sale rows persist product names comma-joined.
	if strings.Contains(draft.Name, ",") {
		return domain.Product{}, fmt.Errorf("%w: product name must not contain commas", store.ErrValidation)
	}
	if !draft.Price.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: price must be greater than zero", store.ErrValidation)
	}
	if draft.Type != domain.ProductTypeAlimento && draft.Type != domain.ProductTypeAdicional {
		return domain.Product{}, fmt.Errorf("%w: unknown product type %q", store.ErrValidation, draft.Type)
	}
	if draft.Stock < 0 || draft.StockMin < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock values must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		Name:        draft.Name,
		Description: draft.Description,
		Price:       draft.Price,
		Stock:       draft.Stock,
		StockMin:    draft.StockMin,
		Type:        draft.Type,
	}
	created, err := s.repo.InsertProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

// Update replaces the product row by id. Stock changes caused by sales never
// go through here; they use SetStock.
func (s *Service) Update(ctx context.Context, product domain.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return fmt.Errorf("%w: product name required", store.ErrValidation)
	}
	if strings.Contains(product.Name, ",") {
		return fmt.Errorf("%w: product name must not contain commas", store.ErrValidation)
	}
	if !product.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", store.ErrValidation)
	}
	return s.repo.UpdateProduct(ctx, product)
}

// Delete is a silent no-op when the id does not exist. Past sales reference
// products by name, so no cascade is needed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// AddStock is the restock operation: stock becomes current + count.
func (s *Service) AddStock(ctx context.Context, id int64, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: restock count must be at least 1", store.ErrValidation)
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SetStock(ctx, id, product.Stock+count)
}

// SetStock is the sole mutation path for sale-driven stock changes.
func (s *Service) SetStock(ctx context.Context, id int64, newStock int) error {
	if newStock < 0 {
		return fmt.Errorf("%w: stock must not be negative", store.ErrInvariant)
	}
	return s.repo.SetStock(ctx, id, newStock)
}

// OutOfStock lists Adicional products whose stock fell strictly below their
// configured minimum.
func (s *Service) OutOfStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return filterOutOfStock(products), nil
}

// WatchOutOfStock recomputes the low-stock projection on every catalog
// change.
func (s *Service) WatchOutOfStock(ctx context.Context) <-chan []domain.Product {
	in := s.repo.WatchProducts(ctx)
	out := make(chan []domain.Product, 1)
	go func() {
		defer close(out)
		for snapshot := range in {
			feed.Send(out, filterOutOfStock(snapshot))
		}
	}()
	return out
}

func filterOutOfStock(products []domain.Product) []domain.Product {
	low := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.TracksStock() && p.Stock < p.StockMin {
			low = append(low, p)
		}
	}
	return low
}
