package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/feed"
	"saleshub/backend/internal/store"
)

// Store is the in-memory repository used for development and tests. It
// mirrors the persistence contract of the postgres store, including the
// snapshot feeds that back the Watch operations.
type Store struct {
	mu           sync.RWMutex
	products     map[int64]domain.Product
	clients      map[int64]domain.Client
	sales        map[int64]domain.Sale
	nextProduct  int64
	nextClient   int64
	nextSale     int64
	productsFeed *feed.Feed[[]domain.Product]
	clientsFeed  *feed.Feed[[]domain.Client]
	salesFeed    *feed.Feed[[]domain.Sale]
}

func New() *Store {
	s := &Store{
		products:     make(map[int64]domain.Product),
		clients:      make(map[int64]domain.Client),
		sales:        make(map[int64]domain.Sale),
		nextProduct:  1,
		nextClient:   1,
		nextSale:     1,
		productsFeed: feed.New[[]domain.Product](),
		clientsFeed:  feed.New[[]domain.Client](),
		salesFeed:    feed.New[[]domain.Sale](),
	}
	s.productsFeed.Publish(nil)
	s.clientsFeed.Publish(nil)
	s.salesFeed.Publish(nil)
	return s
}

// NewSeeded returns a store preloaded with a small shop catalog, handy for
// local runs without a database.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	for _, p := range []domain.Product{
		{Name: "Torta", Description: "Torta de la casa", Price: decimal.NewFromInt(45), Type: domain.ProductTypeAlimento},
		{Name: "Burrito", Description: "Burrito sencillo", Price: decimal.NewFromInt(35), Type: domain.ProductTypeAlimento},
		{Name: "Refresco", Description: "Refresco 600ml", Price: decimal.NewFromInt(18), Stock: 24, StockMin: 6, Type: domain.ProductTypeAdicional},
		{Name: "Agua", Description: "Agua 1L", Price: decimal.NewFromInt(12), Stock: 30, StockMin: 10, Type: domain.ProductTypeAdicional},
	} {
		if _, err := s.InsertProduct(ctx, p); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productSnapshot(), nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) InsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := checkProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	product.ID = s.nextProduct
	s.nextProduct++
	s.products[product.ID] = product
	snapshot := s.productSnapshot()
	s.mu.Unlock()

	s.productsFeed.Publish(snapshot)
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.products[product.ID]; !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.products[product.ID] = product
	snapshot := s.productSnapshot()
	s.mu.Unlock()

	s.productsFeed.Publish(snapshot)
	return nil
}

// DeleteProduct is a no-op when the id is absent, matching the delete
// semantics of the rest of the system.
func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	if _, exists := s.products[id]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.products, id)
	snapshot := s.productSnapshot()
	s.mu.Unlock()

	s.productsFeed.Publish(snapshot)
	return nil
}

func (s *Store) SetStock(_ context.Context, id int64, newStock int) error {
	if newStock < 0 {
		return store.ErrInvariant
	}

	s.mu.Lock()
	product, exists := s.products[id]
	if !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	product.Stock = newStock
	s.products[id] = product
	snapshot := s.productSnapshot()
	s.mu.Unlock()

	s.productsFeed.Publish(snapshot)
	return nil
}

func (s *Store) WatchProducts(ctx context.Context) <-chan []domain.Product {
	return s.productsFeed.Subscribe(ctx)
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientSnapshot(), nil
}

func (s *Store) GetClientByID(_ context.Context, id int64) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneClient(client)
	return &copied, nil
}

func (s *Store) InsertClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	client.ID = s.nextClient
	s.nextClient++
	s.clients[client.ID] = cloneClient(client)
	snapshot := s.clientSnapshot()
	s.mu.Unlock()

	s.clientsFeed.Publish(snapshot)
	created := cloneClient(client)
	return &created, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) error {
	if strings.TrimSpace(client.Name) == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	if _, exists := s.clients[client.ID]; !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.clients[client.ID] = cloneClient(client)
	snapshot := s.clientSnapshot()
	s.mu.Unlock()

	s.clientsFeed.Publish(snapshot)
	return nil
}

// DeleteClient removes the row only. Historical sales keep their client id;
// the reference is left dangling on purpose.
func (s *Store) DeleteClient(_ context.Context, id int64) error {
	s.mu.Lock()
	if _, exists := s.clients[id]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.clients, id)
	snapshot := s.clientSnapshot()
	s.mu.Unlock()

	s.clientsFeed.Publish(snapshot)
	return nil
}

func (s *Store) SetClientBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	s.mu.Lock()
	client, exists := s.clients[id]
	if !exists {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	client.Balance = &balance
	s.clients[id] = client
	snapshot := s.clientSnapshot()
	s.mu.Unlock()

	s.clientsFeed.Publish(snapshot)
	return nil
}

// SetAllCreditTerms back-fills the credit policy on every client row in one
// sweep, the bulk update behind the credit-defaults broadcast.
func (s *Store) SetAllCreditTerms(_ context.Context, maxAmount decimal.Decimal, maxTerm int) error {
	s.mu.Lock()
	for id, client := range s.clients {
		amount := maxAmount
		term := maxTerm
		client.MaxAmount = &amount
		client.MaxTerm = &term
		s.clients[id] = client
	}
	snapshot := s.clientSnapshot()
	s.mu.Unlock()

	s.clientsFeed.Publish(snapshot)
	return nil
}

func (s *Store) WatchClients(ctx context.Context) <-chan []domain.Client {
	return s.clientsFeed.Subscribe(ctx)
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saleSnapshot(), nil
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

// InsertSale assigns an id when sale.ID is zero and otherwise replaces the
// row with the same id, matching insert-or-replace persistence semantics.
func (s *Store) InsertSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.ProductNames) == 0 {
		return nil, store.ErrValidation
	}
	if sale.TotalPrice.IsNegative() {
		return nil, store.ErrInvariant
	}

	s.mu.Lock()
	if sale.ID == 0 {
		sale.ID = s.nextSale
		s.nextSale++
	} else if sale.ID >= s.nextSale {
		s.nextSale = sale.ID + 1
	}
	s.sales[sale.ID] = cloneSale(sale)
	snapshot := s.saleSnapshot()
	s.mu.Unlock()

	s.salesFeed.Publish(snapshot)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) DeleteSale(_ context.Context, id int64) error {
	s.mu.Lock()
	if _, exists := s.sales[id]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.sales, id)
	snapshot := s.saleSnapshot()
	s.mu.Unlock()

	s.salesFeed.Publish(snapshot)
	return nil
}

func (s *Store) WatchSales(ctx context.Context) <-chan []domain.Sale {
	return s.salesFeed.Subscribe(ctx)
}

func checkProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return store.ErrValidation
	}
	if product.Price.IsNegative() {
		return store.ErrInvariant
	}
	if product.Stock < 0 || product.StockMin < 0 {
		return store.ErrInvariant
	}
	return nil
}

func (s *Store) productSnapshot() []domain.Product {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return int(a.ID - b.ID)
	})
	return products
}

func (s *Store) clientSnapshot() []domain.Client {
	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, cloneClient(c))
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return int(a.ID - b.ID)
	})
	return clients
}

func (s *Store) saleSnapshot() []domain.Sale {
	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return int(a.ID - b.ID)
	})
	return sales
}

func cloneClient(c domain.Client) domain.Client {
	if c.MaxAmount != nil {
		amount := *c.MaxAmount
		c.MaxAmount = &amount
	}
	if c.MaxTerm != nil {
		term := *c.MaxTerm
		c.MaxTerm = &term
	}
	if c.Balance != nil {
		balance := *c.Balance
		c.Balance = &balance
	}
	return c
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.ProductNames = slices.Clone(sale.ProductNames)
	sale.Quantities = slices.Clone(sale.Quantities)
	if sale.ClientID != nil {
		id := *sale.ClientID
		sale.ClientID = &id
	}
	if sale.IsCredit != nil {
		credit := *sale.IsCredit
		sale.IsCredit = &credit
	}
	return sale
}
