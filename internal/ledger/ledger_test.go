package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saleshub/backend/internal/domain"
	"saleshub/backend/internal/settings"
	"saleshub/backend/internal/store"
	"saleshub/backend/internal/store/memory"
)

var testDefaults = domain.CreditDefaults{MaxAmount: decimal.NewFromInt(100), MaxTerm: 15}

func newTestService(t *testing.T) (*Service, *memory.Store, *settings.MemoryStore) {
	t.Helper()
	repo := memory.New()
	settingsStore := settings.NewMemoryStore()
	svc, err := New(context.Background(), repo, settingsStore, testDefaults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, repo, settingsStore
}

func TestNewPrefersPersistedDefaults(t *testing.T) {
	ctx := context.Background()
	settingsStore := settings.NewMemoryStore()
	saved := domain.CreditDefaults{MaxAmount: decimal.NewFromInt(250), MaxTerm: 30}
	if err := settingsStore.SaveCreditDefaults(ctx, saved); err != nil {
		t.Fatalf("save defaults: %v", err)
	}

	svc, err := New(ctx, memory.New(), settingsStore, testDefaults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := svc.CreditDefaults()
	if !got.MaxAmount.Equal(saved.MaxAmount) || got.MaxTerm != saved.MaxTerm {
		t.Fatalf("defaults = %+v, want persisted %+v", got, saved)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		client  string
		phone   string
		balance decimal.Decimal
	}{
		{"blank name", "   ", "5512345678", decimal.Zero},
		{"short phone", "Ana", "12345", decimal.Zero},
		{"letters in phone", "Ana", "55123456ab", decimal.Zero},
		{"negative balance", "Ana", "5512345678", decimal.NewFromInt(-1)},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.client, tc.phone, tc.balance); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestRegisterCopiesDefaultsOntoClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	client, err := svc.Register(ctx, " Ana ", " 5512345678 ", decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if client.Name != "Ana" || client.Phone != "5512345678" {
		t.Fatalf("client = %+v, want trimmed fields", client)
	}
	if client.MaxAmount == nil || !client.MaxAmount.Equal(testDefaults.MaxAmount) {
		t.Fatalf("max amount = %v, want %s", client.MaxAmount, testDefaults.MaxAmount)
	}
	if client.MaxTerm == nil || *client.MaxTerm != testDefaults.MaxTerm {
		t.Fatalf("max term = %v, want %d", client.MaxTerm, testDefaults.MaxTerm)
	}
	if client.Balance == nil || !client.Balance.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("balance = %v, want 20", client.Balance)
	}
}

func TestApplyPayment(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	client, err := svc.Register(ctx, "Ana", "5512345678", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ApplyPayment(ctx, client.ID, decimal.Zero); !errors.Is(err, ErrPaymentInvalidAmount) {
		t.Fatalf("zero payment: err = %v, want ErrPaymentInvalidAmount", err)
	}
	if err := svc.ApplyPayment(ctx, client.ID, decimal.NewFromInt(-5)); !errors.Is(err, ErrPaymentInvalidAmount) {
		t.Fatalf("negative payment: err = %v, want ErrPaymentInvalidAmount", err)
	}
	if err := svc.ApplyPayment(ctx, client.ID, decimal.NewFromInt(51)); !errors.Is(err, ErrPaymentExceedsBalance) {
		t.Fatalf("oversized payment: err = %v, want ErrPaymentExceedsBalance", err)
	}

	// A rejected payment leaves the balance alone.
	got, err := repo.GetClientByID(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want untouched 50", got.Balance)
	}

	// Paying the full balance exactly is allowed and reaches zero.
	if err := svc.ApplyPayment(ctx, client.ID, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("exact payment: %v", err)
	}
	got, err = repo.GetClientByID(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !got.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", got.Balance)
	}

	if err := svc.ApplyPayment(ctx, 999, decimal.NewFromInt(10)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown client: err = %v, want ErrNotFound", err)
	}
}

func TestAdjustBalanceTreatsMissingAsZero(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	inserted, err := repo.InsertClient(ctx, domain.Client{Name: "Sin Saldo", Phone: "5511111111"})
	if err != nil {
		t.Fatalf("insert client: %v", err)
	}

	if err := svc.AdjustBalance(ctx, inserted.ID, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("AdjustBalance: %v", err)
	}
	got, err := repo.GetClientByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.Balance == nil || !got.Balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("balance = %v, want 30", got.Balance)
	}
}

func TestSetCreditDefaultsBroadcastsToExistingClients(t *testing.T) {
	svc, repo, settingsStore := newTestService(t)
	ctx := context.Background()

	before, err := svc.Register(ctx, "Ana", "5512345678", decimal.Zero)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	newAmount := decimal.NewFromInt(300)
	if err := svc.SetCreditDefaults(ctx, newAmount, 30); err != nil {
		t.Fatalf("SetCreditDefaults: %v", err)
	}

	got, err := repo.GetClientByID(ctx, before.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.MaxAmount == nil || !got.MaxAmount.Equal(newAmount) || got.MaxTerm == nil || *got.MaxTerm != 30 {
		t.Fatalf("existing client limits = %v/%v, want 300/30", got.MaxAmount, got.MaxTerm)
	}

	after, err := svc.Register(ctx, "Beto", "5587654321", decimal.Zero)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !after.MaxAmount.Equal(newAmount) || *after.MaxTerm != 30 {
		t.Fatalf("new client limits = %v/%v, want 300/30", after.MaxAmount, after.MaxTerm)
	}

	stored, ok, err := settingsStore.LoadCreditDefaults(ctx)
	if err != nil || !ok {
		t.Fatalf("defaults not persisted: ok=%v err=%v", ok, err)
	}
	if !stored.MaxAmount.Equal(newAmount) || stored.MaxTerm != 30 {
		t.Fatalf("persisted defaults = %+v, want 300/30", stored)
	}
}

type backfillFailingRepo struct {
	store.Repository
}

func (backfillFailingRepo) SetAllCreditTerms(ctx context.Context, maxAmount decimal.Decimal, maxTerm int) error {
	return errors.New("database offline")
}

func TestSetCreditDefaultsBackfillFailureKeepsOldInMemoryPolicy(t *testing.T) {
	ctx := context.Background()
	settingsStore := settings.NewMemoryStore()
	svc, err := New(ctx, backfillFailingRepo{memory.New()}, settingsStore, testDefaults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	newAmount := decimal.NewFromInt(300)
	if err := svc.SetCreditDefaults(ctx, newAmount, 30); err == nil {
		t.Fatal("SetCreditDefaults: want error when back-fill fails")
	}

	// The settings store already holds the new policy, the in-process copy
	// keeps the old one until a restart reloads the persisted values.
	got := svc.CreditDefaults()
	if !got.MaxAmount.Equal(testDefaults.MaxAmount) || got.MaxTerm != testDefaults.MaxTerm {
		t.Fatalf("in-memory defaults = %+v, want old %+v", got, testDefaults)
	}
	stored, ok, err := settingsStore.LoadCreditDefaults(ctx)
	if err != nil || !ok {
		t.Fatalf("persisted defaults missing: ok=%v err=%v", ok, err)
	}
	if !stored.MaxAmount.Equal(newAmount) || stored.MaxTerm != 30 {
		t.Fatalf("persisted defaults = %+v, want new 300/30", stored)
	}
}

func TestSetCreditDefaultsRejectsNegative(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetCreditDefaults(ctx, decimal.NewFromInt(-1), 15); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("negative amount: err = %v, want ErrValidation", err)
	}
	if err := svc.SetCreditDefaults(ctx, decimal.NewFromInt(100), -1); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("negative term: err = %v, want ErrValidation", err)
	}
}

func TestOverLimitUsesStrictComparison(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	// Exactly at the limit is not over it.
	if _, err := svc.Register(ctx, "Justa", "5511111111", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	over, err := svc.Register(ctx, "Deudora", "5522222222", decimal.NewFromInt(101))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	// A client without limits never appears regardless of balance.
	if _, err := repo.InsertClient(ctx, domain.Client{Name: "Sin Limite", Phone: "5533333333"}); err != nil {
		t.Fatalf("insert client: %v", err)
	}

	got, err := svc.OverLimit(ctx)
	if err != nil {
		t.Fatalf("OverLimit: %v", err)
	}
	if len(got) != 1 || got[0].ID != over.ID {
		t.Fatalf("over limit = %+v, want only client %d", got, over.ID)
	}
}

func TestWatchClientEmitsNilAfterDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := svc.Register(ctx, "Ana", "5512345678", decimal.Zero)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	out := svc.WatchClient(ctx, client.ID)
	first := recvClient(t, out)
	if first == nil || first.ID != client.ID {
		t.Fatalf("first snapshot = %+v, want client %d", first, client.ID)
	}

	if err := svc.Delete(ctx, client.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-out:
			if got == nil {
				return
			}
		case <-deadline:
			t.Fatal("never observed nil after delete")
		}
	}
}

func recvClient(t *testing.T, ch <-chan *domain.Client) *domain.Client {
	t.Helper()
	select {
	case client := <-ch:
		return client
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client snapshot")
		return nil
	}
}
