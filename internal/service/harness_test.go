package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/eventgate/ticket-lifecycle/internal/chain"
	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/observability"
	"github.com/eventgate/ticket-lifecycle/internal/repository/memstore"
)

const (
	escrowAddress   = "0x00000000000000000000000000000000000e5c20"
	treasuryAddress = "0x0000000000000000000000000000000000007ea5"
	holderWallet    = "0x0000000000000000000000000000000000000123"
)

type harness struct {
	t          *testing.T
	store      *memstore.Store
	ledger     *AuditLedger
	executor   *TransitionExecutor
	settlement *SettlementService
	lifecycle  *LifecycleService
	timeline   *TimelineService
	chain      *fakeChain
	mirror     *fakeMirror
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	cfg        config.SettlementConfig
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	logger *zap.Logger
	strict bool
}

func withLogger(l *zap.Logger) harnessOption {
	return func(o *harnessOptions) { o.logger = l }
}

func withStrictRecipient() harnessOption {
	return func(o *harnessOptions) { o.strict = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{logger: zaptest.NewLogger(t)}
	for _, opt := range opts {
		opt(&o)
	}

	store := memstore.New()
	ledger := NewAuditLedger(store.Audit)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	cfg := config.SettlementConfig{
		Network:              "testnet",
		EscrowAddress:        escrowAddress,
		TreasuryAddress:      treasuryAddress,
		StakeAmount:          0.01,
		StakeCurrency:        "ETH",
		StrictRecipientCheck: o.strict,
	}
	fc := newFakeChain("testnet")
	mirror := &fakeMirror{}

	executor := NewTransitionExecutor(TransitionDependencies{
		Entities: store.Lifecycle,
		Tx:       store,
		Guards:   NewGuardEvaluator(store.Events, nil),
		Metrics:  metrics,
		Logger:   o.logger,
	})
	settlement := NewSettlementService(SettlementDependencies{
		Chains:     []ChainClient{fc},
		Entities:   store.Lifecycle,
		Tx:         store,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Config:     cfg,
		Logger:     o.logger,
	})
	lifecycle := NewLifecycleService(LifecycleDependencies{
		Repos:      store.Repositories,
		Tx:         store,
		Executor:   executor,
		Ledger:     ledger,
		Settlement: settlement,
		Mirror:     mirror,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     o.logger,
	})
	return &harness{
		t:          t,
		store:      store,
		ledger:     ledger,
		executor:   executor,
		settlement: settlement,
		lifecycle:  lifecycle,
		timeline:   NewTimelineService(ledger),
		chain:      fc,
		mirror:     mirror,
		dispatcher: dispatcher,
		metrics:    metrics,
		cfg:        cfg,
	}
}

func (h *harness) seedEvent(title string, startsAt *time.Time, status domain.Status) string {
	h.t.Helper()
	ev := &domain.Event{OrganizerID: "organizer-1", Title: title, StartsAt: startsAt, Status: status}
	if err := h.store.Events.Create(context.Background(), ev); err != nil {
		h.t.Fatalf("seed event: %v", err)
	}
	return ev.ID
}

func (h *harness) seedTicket(status domain.Status) string {
	h.t.Helper()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	eventID := h.seedEvent("Launch party", &start, domain.EventStatusPublished)
	return h.seedTicketFor(eventID, status)
}

func (h *harness) seedTicketFor(eventID string, status domain.Status) string {
	h.t.Helper()
	tk := &domain.Ticket{EventID: eventID, HolderID: "holder-1", Status: status}
	if err := h.store.Tickets.Create(context.Background(), tk); err != nil {
		h.t.Fatalf("seed ticket: %v", err)
	}
	return tk.ID
}

func (h *harness) status(kind domain.EntityKind, id string) domain.Status {
	h.t.Helper()
	e, err := h.store.Lifecycle.Get(context.Background(), kind, id)
	if err != nil {
		h.t.Fatalf("get %s %s: %v", kind, id, err)
	}
	return e.Status
}

func (h *harness) transition(kind domain.EntityKind, id string, target domain.Status, payload map[string]any) (*TransitionResult, error) {
	return h.lifecycle.Transition(context.Background(), TransitionInput{
		Kind:     kind,
		EntityID: id,
		Target:   target,
		Actor:    domain.Actor{Type: domain.ActorTypeUser, ID: "user-1"},
		Payload:  payload,
	})
}

func (h *harness) mustTransition(kind domain.EntityKind, id string, target domain.Status, payload map[string]any) *TransitionResult {
	h.t.Helper()
	res, err := h.transition(kind, id, target, payload)
	if err != nil {
		h.t.Fatalf("transition %s %s -> %s: %v", kind, id, target, err)
	}
	return res
}

func stakePayload() map[string]any {
	return map[string]any{"amount": 0.01, "currency": "ETH", "txHash": "0xabc", "walletAddress": "0x123"}
}

func requireCode(t *testing.T, err error, code domain.ErrorCode) *domain.TransitionError {
	t.Helper()
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want %s", err, code)
	}
	if te.Code != code {
		t.Fatalf("code = %s (%v), want %s", te.Code, err, code)
	}
	return te
}

type fakeMirror struct {
	mu      sync.Mutex
	err     error
	written []domain.LifecycleEntity
}

func (m *fakeMirror) Name() string { return "redis" }

func (m *fakeMirror) MirrorStatus(ctx context.Context, entity domain.LifecycleEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, entity)
	return nil
}

type transfer struct {
	to  string
	wei *big.Int
}

type fakeChain struct {
	mu          sync.Mutex
	network     string
	txs         map[string]*chain.Transaction
	lookupErr   error
	transferErr error
	// delay holds each transfer open to widen races.
	delay     time.Duration
	transfers []transfer
}

func newFakeChain(network string) *fakeChain {
	return &fakeChain{network: network, txs: map[string]*chain.Transaction{}}
}

func (c *fakeChain) Network() string { return c.network }

func (c *fakeChain) LookupTransaction(ctx context.Context, reference string) (*chain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	if tx, ok := c.txs[reference]; ok {
		cp := *tx
		return &cp, nil
	}
	return &chain.Transaction{Hash: reference}, nil
}

func (c *fakeChain) Transfer(ctx context.Context, to string, amountWei *big.Int) (string, error) {
	c.mu.Lock()
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		return "", c.transferErr
	}
	c.transfers = append(c.transfers, transfer{to: to, wei: new(big.Int).Set(amountWei)})
	return "0xsettle" + string(rune('0'+len(c.transfers))), nil
}

func (c *fakeChain) addTransfer(hash, to, from string, eth float64) {
	wei, err := chain.EtherToWei(eth)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[hash] = &chain.Transaction{Hash: hash, Found: true, Sender: from, Recipients: []string{to}, ValueWei: wei}
}

func (c *fakeChain) transferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transfers)
}
