package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
)

var (
	// ErrNotFound is returned when a referenced id is missing. Deletes
	// treat it as a silent no-op; updates surface it.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrInvariant marks a mutation that would break an internal contract,
	// such as a negative stock level. It indicates a caller bug.
	ErrInvariant = errors.New("invariant violation")
)

// Repository is the persistence collaborator shared by the catalog, ledger
// and sales engine. Insert operations assign ids. Watch operations return a
// live stream of full snapshots: one on subscribe, then one per mutation,
// conflated to the latest. The stream never completes on its own; it closes
// when ctx is cancelled.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	SetStock(ctx context.Context, id int64, newStock int) error
	WatchProducts(ctx context.Context) <-chan []domain.Product

	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClientByID(ctx context.Context, id int64) (*domain.Client, error)
	InsertClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) error
	DeleteClient(ctx context.Context, id int64) error
	SetClientBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	SetAllCreditTerms(ctx context.Context, maxAmount decimal.Decimal, maxTerm int) error
	WatchClients(ctx context.Context) <-chan []domain.Client

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	// InsertSale assigns a fresh id when sale.ID is zero; otherwise it
	// replaces the existing row with the same id.
	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
	WatchSales(ctx context.Context) <-chan []domain.Sale
}
