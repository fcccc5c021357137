package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/feed"
	"saleshub/backend/internal/store"
)

// Store is the durable repository. Change notifications are published by the
// store itself after each successful mutation; with a single writer process
// that is equivalent to listening on the database.
type Store struct {
	db           *sql.DB
	productsFeed *feed.Feed[[]domain.Product]
	clientsFeed  *feed.Feed[[]domain.Client]
	salesFeed    *feed.Feed[[]domain.Sale]
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:           db,
		productsFeed: feed.New[[]domain.Product](),
		clientsFeed:  feed.New[[]domain.Client](),
		salesFeed:    feed.New[[]domain.Sale](),
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.notifyProducts(ctx)
	s.notifyClients(ctx)
	s.notifySales(ctx)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price      NUMERIC(12,2) NOT NULL,
			stock      INT NOT NULL DEFAULT 0,
			stock_min  INT NOT NULL DEFAULT 0,
			type       TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS clients (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL,
			max_amount NUMERIC(12,2),
			max_term   INT,
			balance    NUMERIC(12,2)
		);
		CREATE TABLE IF NOT EXISTS sales (
			id            BIGSERIAL PRIMARY KEY,
			product_names TEXT NOT NULL,
			quantities    TEXT NOT NULL DEFAULT '[]',
			total_price   NUMERIC(12,2) NOT NULL,
			ts            BIGINT NOT NULL,
			client_id     BIGINT,
			is_credit     BOOLEAN
		);
	`)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, stock_min, type
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.StockMin, &p.Type); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, stock_min, type
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.StockMin, &p.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}
	if product.Price.IsNegative() || product.Stock < 0 || product.StockMin < 0 {
		return nil, store.ErrInvariant
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock, stock_min, type)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, product.Name, product.Description, product.Price, product.Stock, product.StockMin, product.Type).Scan(&product.ID)
	if err != nil {
		return nil, err
	}

	s.notifyProducts(ctx)
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return store.ErrValidation
	}
	if product.Price.IsNegative() || product.Stock < 0 || product.StockMin < 0 {
		return store.ErrInvariant
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, stock_min = $6, type = $7
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Price, product.Stock, product.StockMin, product.Type)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.notifyProducts(ctx)
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.notifyProducts(ctx)
	}
	return nil
}

func (s *Store) SetStock(ctx context.Context, id int64, newStock int) error {
	if newStock < 0 {
		return store.ErrInvariant
	}

	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, newStock)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.notifyProducts(ctx)
	return nil
}

func (s *Store) WatchProducts(ctx context.Context) <-chan []domain.Product {
	return s.productsFeed.Subscribe(ctx)
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, max_amount, max_term, balance
		FROM clients
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		client, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) GetClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, max_amount, max_term, balance
		FROM clients
		WHERE id = $1
	`, id)
	client, err := scanClient(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (s *Store) InsertClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (name, phone, max_amount, max_term, balance)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, client.Name, client.Phone, nullDecimal(client.MaxAmount), nullInt(client.MaxTerm), nullDecimal(client.Balance)).Scan(&client.ID)
	if err != nil {
		return nil, err
	}

	s.notifyClients(ctx)
	created := client
	return &created, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) error {
	if strings.TrimSpace(client.Name) == "" {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, phone = $3, max_amount = $4, max_term = $5, balance = $6
		WHERE id = $1
	`, client.ID, client.Name, client.Phone, nullDecimal(client.MaxAmount), nullInt(client.MaxTerm), nullDecimal(client.Balance))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.notifyClients(ctx)
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.notifyClients(ctx)
	}
	return nil
}

func (s *Store) SetClientBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	s.notifyClients(ctx)
	return nil
}

func (s *Store) SetAllCreditTerms(ctx context.Context, maxAmount decimal.Decimal, maxTerm int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE clients SET max_amount = $1, max_term = $2`, maxAmount, maxTerm)
	if err != nil {
		return err
	}

	s.notifyClients(ctx)
	return nil
}

func (s *Store) WatchClients(ctx context.Context) <-chan []domain.Client {
	return s.clientsFeed.Subscribe(ctx)
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_names, quantities, total_price, ts, client_id, is_credit
		FROM sales
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows.Scan)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_names, quantities, total_price, ts, client_id, is_credit
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.ProductNames) == 0 {
		return nil, store.ErrValidation
	}
	if sale.TotalPrice.IsNegative() {
		return nil, store.ErrInvariant
	}

	quantities, err := json.Marshal(sale.Quantities)
	if err != nil {
		return nil, err
	}
	names := strings.Join(sale.ProductNames, ",")

	if sale.ID == 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO sales (product_names, quantities, total_price, ts, client_id, is_credit)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, names, string(quantities), sale.TotalPrice, sale.Timestamp, nullInt64(sale.ClientID), nullBool(sale.IsCredit)).Scan(&sale.ID)
	} else {
		// Re-insert with an explicit id replaces the existing row.
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO sales (id, product_names, quantities, total_price, ts, client_id, is_credit)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE
			SET product_names = EXCLUDED.product_names,
			    quantities = EXCLUDED.quantities,
			    total_price = EXCLUDED.total_price,
			    ts = EXCLUDED.ts,
			    client_id = EXCLUDED.client_id,
			    is_credit = EXCLUDED.is_credit
		`, sale.ID, names, string(quantities), sale.TotalPrice, sale.Timestamp, nullInt64(sale.ClientID), nullBool(sale.IsCredit))
	}
	if err != nil {
		return nil, err
	}

	s.notifySales(ctx)
	created := sale
	return &created, nil
}

func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.notifySales(ctx)
	}
	return nil
}

func (s *Store) WatchSales(ctx context.Context) <-chan []domain.Sale {
	return s.salesFeed.Subscribe(ctx)
}

func (s *Store) notifyProducts(ctx context.Context) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		log.Printf("[postgres] WARN: product snapshot refresh failed: %v", err)
		return
	}
	s.productsFeed.Publish(products)
}

func (s *Store) notifyClients(ctx context.Context) {
	clients, err := s.ListClients(ctx)
	if err != nil {
		log.Printf("[postgres] WARN: client snapshot refresh failed: %v", err)
		return
	}
	s.clientsFeed.Publish(clients)
}

func (s *Store) notifySales(ctx context.Context) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		log.Printf("[postgres] WARN: sale snapshot refresh failed: %v", err)
		return
	}
	s.salesFeed.Publish(sales)
}

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var client domain.Client
	var maxAmount, balance decimal.NullDecimal
	var maxTerm sql.NullInt64

	if err := scan(&client.ID, &client.Name, &client.Phone, &maxAmount, &maxTerm, &balance); err != nil {
		return domain.Client{}, err
	}
	if maxAmount.Valid {
		client.MaxAmount = &maxAmount.Decimal
	}
	if maxTerm.Valid {
		term := int(maxTerm.Int64)
		client.MaxTerm = &term
	}
	if balance.Valid {
		client.Balance = &balance.Decimal
	}
	return client, nil
}

// scanSale splits the comma-joined product_names column back into entries.
// The split is only unambiguous because catalog validation rejects commas in
// product names.
func scanSale(scan func(dest ...any) error) (domain.Sale, error) {
	var sale domain.Sale
	var names, quantities string
	var clientID sql.NullInt64
	var isCredit sql.NullBool

	if err := scan(&sale.ID, &names, &quantities, &sale.TotalPrice, &sale.Timestamp, &clientID, &isCredit); err != nil {
		return domain.Sale{}, err
	}
	if names != "" {
		sale.ProductNames = strings.Split(names, ",")
	}
	if quantities != "" {
		if err := json.Unmarshal([]byte(quantities), &sale.Quantities); err != nil {
			return domain.Sale{}, err
		}
	}
	if clientID.Valid {
		sale.ClientID = &clientID.Int64
	}
	if isCredit.Valid {
		sale.IsCredit = &isCredit.Bool
	}
	return sale, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
