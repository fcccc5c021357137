// Package sales owns the sale ledger and the reconciliation flow that keeps
// it consistent with inventory stock and client credit balances.
package sales

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/store"
)

// StockSetter is the narrow slice of the catalog the engine is allowed to
// mutate during stock reconciliation.
type StockSetter interface {
	SetStock(ctx context.Context, productID int64, newStock int) error
}

// BalanceAdjuster is the narrow slice of the client ledger the engine is
// allowed to mutate during credit reconciliation.
type BalanceAdjuster interface {
	AdjustBalance(ctx context.Context, clientID int64, delta decimal.Decimal) error
}

// RegistrationError wraps any failure during the multi-step sale
// registration. Side effects applied before the failure stay applied; there
// is no rollback.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("sale registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

type Engine struct {
	repo    store.Repository
	stock   StockSetter
	balance BalanceAdjuster
	now     func() time.Time
}

func New(repo store.Repository, stock StockSetter, balance BalanceAdjuster) *Engine {
	return &Engine{
		repo:    repo,
		stock:   stock,
		balance: balance,
		now:     time.Now,
	}
}

func (e *Engine) List(ctx context.Context) ([]domain.Sale, error) {
	return e.repo.ListSales(ctx)
}

func (e *Engine) Watch(ctx context.Context) <-chan []domain.Sale {
	return e.repo.WatchSales(ctx)
}

// Register runs the sale flow: value the cart, persist the sale, decrement
// stock for inventory-tracked products, then raise the client's balance when
// the sale is on credit. The steps are sequential, not transactional: a
// failure after the insert leaves the sale (and any earlier step) in place
// and surfaces as a RegistrationError.
func (e *Engine) Register(ctx context.Context, cart []domain.CartItem, clientID *int64, isCredit bool) (domain.Sale, error) {
	if len(cart) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: cart is empty", store.ErrValidation)
	}
	for _, item := range cart {
		if item.Qty < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity must be at least 1 for %q", store.ErrValidation, item.Product.Name)
		}
	}

	total := decimal.Zero
	names := make([]string, 0, len(cart))
	quantities := make([]int, 0, len(cart))
	for _, item := range cart {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Qty))))
		for range item.Qty {
			names = append(names, item.Product.Name)
			quantities = append(quantities, 1)
		}
	}

	credit := isCredit
	sale := domain.Sale{
		ProductNames: names,
		Quantities:   quantities,
		TotalPrice:   total,
		Timestamp:    e.now().UnixMilli(),
		ClientID:     clientID,
		IsCredit:     &credit,
	}

	created, err := e.repo.InsertSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, &RegistrationError{Err: err}
	}

	// The same product can appear on several cart lines (the frontend adds
	// one line per unit). Sum quantities per product first; decrementing per
	// line from the same stock snapshot would let later lines overwrite
	// earlier ones.
	type decrement struct {
		product domain.Product
		qty     int
	}
	merged := make([]decrement, 0, len(cart))
	index := make(map[int64]int, len(cart))
	for _, item := range cart {
		if !item.Product.TracksStock() {
			continue
		}
		if i, seen := index[item.Product.ID]; seen {
			merged[i].qty += item.Qty
			continue
		}
		index[item.Product.ID] = len(merged)
		merged = append(merged, decrement{product: item.Product, qty: item.Qty})
	}
	for _, d := range merged {
		newStock := d.product.Stock - d.qty
		if newStock < 0 {
			newStock = 0
		}
		if err := e.stock.SetStock(ctx, d.product.ID, newStock); err != nil {
			log.Printf("[sales] WARN: sale %d registered but stock update failed for product %d: %v", created.ID, d.product.ID, err)
			return *created, &RegistrationError{Err: err}
		}
	}

	// A credit sale without a client id is recorded but adjusts nobody's
	// balance.
	if isCredit && clientID != nil {
		if err := e.balance.AdjustBalance(ctx, *clientID, total); err != nil {
			log.Printf("[sales] WARN: sale %d registered but balance update failed for client %d: %v", created.ID, *clientID, err)
			return *created, &RegistrationError{Err: err}
		}
	}

	return *created, nil
}

// Delete removes the sale row only. Stock decrements and balance increments
// from the original registration are never reversed.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	return e.repo.DeleteSale(ctx, id)
}
