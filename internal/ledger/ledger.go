// Package ledger owns the client records, their credit balances and the
// shop-wide credit policy.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/feed"
	"saleshub/backend/internal/settings"
	"saleshub/backend/internal/store"
)

var (
	// ErrPaymentInvalidAmount rejects zero or negative payment amounts.
	ErrPaymentInvalidAmount = errors.New("payment amount must be greater than zero")
	// ErrPaymentExceedsBalance rejects payments larger than the client's
	// outstanding debt. Excess payments are refused, not clamped.
	ErrPaymentExceedsBalance = errors.New("payment exceeds outstanding balance")
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

type Service struct {
	repo     store.Repository
	settings settings.Store

	mu       sync.RWMutex
	defaults domain.CreditDefaults
}

// New loads the persisted credit defaults once at construction; fallback is
// used when nothing has been written yet.
func New(ctx context.Context, repo store.Repository, settingsStore settings.Store, fallback domain.CreditDefaults) (*Service, error) {
	s := &Service{repo: repo, settings: settingsStore, defaults: fallback}

	stored, ok, err := settingsStore.LoadCreditDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credit defaults: %w", err)
	}
	if ok {
		s.defaults = stored
	}
	return s, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	return s.repo.GetClientByID(ctx, id)
}

func (s *Service) Watch(ctx context.Context) <-chan []domain.Client {
	return s.repo.WatchClients(ctx)
}

// WatchClient projects the live client list down to a single id. The stream
// emits nil once the client is deleted.
func (s *Service) WatchClient(ctx context.Context, id int64) <-chan *domain.Client {
	in := s.repo.WatchClients(ctx)
	out := make(chan *domain.Client, 1)
	go func() {
		defer close(out)
		for snapshot := range in {
			var match *domain.Client
			for i := range snapshot {
				if snapshot[i].ID == id {
					match = &snapshot[i]
					break
				}
			}
			feed.Send(out, match)
		}
	}()
	return out
}

// Register creates a client with the current credit defaults copied onto the
// row. The initial balance is the client's starting debt.
func (s *Service) Register(ctx context.Context, name string, phone string, initialBalance decimal.Decimal) (domain.Client, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return domain.Client{}, fmt.Errorf("%w: client name required", store.ErrValidation)
	}
	if !phonePattern.MatchString(phone) {
		return domain.Client{}, fmt.Errorf("%w: phone must be exactly 10 digits", store.ErrValidation)
	}
	if initialBalance.IsNegative() {
		return domain.Client{}, fmt.Errorf("%w: initial balance must not be negative", store.ErrValidation)
	}

	defaults := s.CreditDefaults()
	maxAmount := defaults.MaxAmount
	maxTerm := defaults.MaxTerm
	client := domain.Client{
		Name:      name,
		Phone:     phone,
		MaxAmount: &maxAmount,
		MaxTerm:   &maxTerm,
		Balance:   &initialBalance,
	}

	created, err := s.repo.InsertClient(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}
	return *created, nil
}

// Update replaces the mutable contact fields only. Balance and credit limits
// change exclusively through ApplyPayment, AdjustBalance and
// SetCreditDefaults.
func (s *Service) Update(ctx context.Context, id int64, name string, phone string) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	if name == "" {
		return fmt.Errorf("%w: client name required", store.ErrValidation)
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("%w: phone must be exactly 10 digits", store.ErrValidation)
	}

	existing, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return err
	}
	updated := *existing
	updated.Name = name
	updated.Phone = phone
	return s.repo.UpdateClient(ctx, updated)
}

// Delete removes the client row. Historical sales keep their client id; the
// dangling reference is intentional.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteClient(ctx, id)
}

// AdjustBalance sets balance = current + delta. It is the narrow primitive
// handed to the sales engine for credit reconciliation and is not exposed at
// the presentation boundary. A missing balance counts as zero.
func (s *Service) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	client, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return err
	}

	current := decimal.Zero
	if client.Balance != nil {
		current = *client.Balance
	}
	return s.repo.SetClientBalance(ctx, id, current.Add(delta))
}

// ApplyPayment lowers the client's debt by amount. Payments above the
// outstanding balance are rejected, so the balance can never go below zero
// through this path.
func (s *Service) ApplyPayment(ctx context.Context, id int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrPaymentInvalidAmount
	}

	client, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return err
	}

	balance := decimal.Zero
	if client.Balance != nil {
		balance = *client.Balance
	}
	if amount.GreaterThan(balance) {
		return ErrPaymentExceedsBalance
	}

	return s.repo.SetClientBalance(ctx, id, balance.Sub(amount))
}

// CreditDefaults returns the current shop-wide policy values.
func (s *Service) CreditDefaults() domain.CreditDefaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// SetCreditDefaults persists the new policy and back-fills it onto every
// existing client row. The broadcast is deliberate: changing the policy
// retroactively re-caps everyone. The two writes are not atomic: if the
// back-fill fails after the settings store accepted the new values, the
// in-process defaults keep the old policy until a restart reloads the
// persisted one.
func (s *Service) SetCreditDefaults(ctx context.Context, maxAmount decimal.Decimal, maxTerm int) error {
	if maxAmount.IsNegative() || maxTerm < 0 {
		return fmt.Errorf("%w: credit defaults must not be negative", store.ErrValidation)
	}

	defaults := domain.CreditDefaults{MaxAmount: maxAmount, MaxTerm: maxTerm}
	if err := s.settings.SaveCreditDefaults(ctx, defaults); err != nil {
		return err
	}
	if err := s.repo.SetAllCreditTerms(ctx, maxAmount, maxTerm); err != nil {
		log.Printf("[ledger] WARN: credit defaults saved but client back-fill failed: %v", err)
		return err
	}

	s.mu.Lock()
	s.defaults = defaults
	s.mu.Unlock()
	return nil
}

// OverLimit lists clients whose debt exceeds their credit limit. Clients
// without a balance or without a limit never appear.
func (s *Service) OverLimit(ctx context.Context) ([]domain.Client, error) {
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return filterOverLimit(clients), nil
}

func (s *Service) WatchOverLimit(ctx context.Context) <-chan []domain.Client {
	in := s.repo.WatchClients(ctx)
	out := make(chan []domain.Client, 1)
	go func() {
		defer close(out)
		for snapshot := range in {
			feed.Send(out, filterOverLimit(snapshot))
		}
	}()
	return out
}

func filterOverLimit(clients []domain.Client) []domain.Client {
	over := make([]domain.Client, 0, len(clients))
	for _, c := range clients {
		if c.Balance == nil || c.MaxAmount == nil {
			continue
		}
		if c.Balance.GreaterThan(*c.MaxAmount) {
			over = append(over, c)
		}
	}
	return over
}
