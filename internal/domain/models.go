package domain

import "github.com/shopspring/decimal"

const (
	ProductTypeAlimento  = "Alimento"
	ProductTypeAdicional = "Adicional"
)

const (
	PeriodToday     = "Hoy"
	PeriodWeek      = "Semana"
	PeriodFortnight = "Quincena"
	PeriodAll       = "Todo"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	StockMin    int             `json:"stock_min"`
	Type        string          `json:"type"`
}

// TracksStock reports whether the product participates in inventory
// accounting. Alimento products are prepared on demand and carry no stock.
func (p Product) TracksStock() bool {
	return p.Type == ProductTypeAdicional
}

type ProductDraft struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	StockMin    int             `json:"stock_min"`
	Type        string          `json:"type"`
}

type Client struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Phone     string           `json:"phone"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
	MaxTerm   *int             `json:"max_term,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
}

type Sale struct {
	ID int64 `json:"id"`
	// ProductNames holds one entry per unit sold; a quantity of three is
	// three repeated name entries. Downstream readers derive per-product
	// counts by grouping these entries.
	ProductNames []string `json:"product_names"`
	// Quantities is a legacy parallel field kept for persistence
	// compatibility. It is written as all-1s and never read back by
	// business logic.
	Quantities []int           `json:"quantities"`
	TotalPrice decimal.Decimal `json:"total_price"`
	// Timestamp is epoch milliseconds, set once at registration.
	Timestamp int64  `json:"timestamp"`
	ClientID  *int64 `json:"client_id,omitempty"`
	IsCredit  *bool  `json:"is_credit,omitempty"`
}

// CartItem pairs a product with the number of units being sold. The product
// snapshot carries the price the sale is valued at; later catalog edits do
// not retroactively change registered sales.
type CartItem struct {
	Product Product `json:"product"`
	Qty     int     `json:"qty"`
}

// CreditDefaults are the shop-wide credit policy values applied to newly
// registered clients and broadcast to existing ones on update.
type CreditDefaults struct {
	MaxAmount decimal.Decimal `json:"max_amount"`
	MaxTerm   int             `json:"max_term"`
}

// SalesSummary is the daily totals projection shown on the home screen.
type SalesSummary struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}
