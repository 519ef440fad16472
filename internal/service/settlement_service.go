package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/chain"
	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// ChainClient is the read/write primitive for one network.
type ChainClient interface {
	Network() string
	LookupTransaction(ctx context.Context, reference string) (*chain.Transaction, error)
	Transfer(ctx context.Context, to string, amountWei *big.Int) (string, error)
}

// VerificationResult is the outcome of checking an on-chain transfer.
type VerificationResult struct {
	Verified bool                `json:"verified"`
	Info     *domain.StakeRecord `json:"info,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// SettlementResult is the outcome of a release or forfeit.
type SettlementResult struct {
	Success    bool   `json:"success"`
	TxHash     string `json:"tx_hash,omitempty"`
	EnvelopeID string `json:"envelope_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SettlementDependencies bundles collaborators for settlement.
type SettlementDependencies struct {
	Chains     []ChainClient
	Entities   repository.LifecycleRepository
	Tx         repository.TxRunner
	Ledger     *AuditLedger
	Dispatcher events.Dispatcher
	Config     config.SettlementConfig
	Clock      func() time.Time
	Logger     *zap.Logger
}

// SettlementService verifies stakes and moves escrowed funds after the
// ticket transition that justifies it has committed.
type SettlementService struct {
	chains     map[string]ChainClient
	entities   repository.LifecycleRepository
	tx         repository.TxRunner
	ledger     *AuditLedger
	dispatcher events.Dispatcher
	cfg        config.SettlementConfig
	clock      func() time.Time
	logger     *zap.Logger
}

// NewSettlementService constructs the service.
func NewSettlementService(deps SettlementDependencies) *SettlementService {
	s := &SettlementService{
		chains:     make(map[string]ChainClient, len(deps.Chains)),
		entities:   deps.Entities,
		tx:         deps.Tx,
		ledger:     deps.Ledger,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	for _, c := range deps.Chains {
		if c != nil {
			s.chains[c.Network()] = c
		}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// RegisterHandlers subscribes release/forfeit to committed transitions.
// Settlement runs detached from the request that caused it.
func (s *SettlementService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventLifecycleTransitioned, events.Detached(s.HandleTransition, func(e events.Event, err error) {
		s.logger.Error("settlement handler failed",
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
	}))
}

// HandleTransition releases on staked→checked_in and forfeits on
// staked→forfeited. Other transitions are ignored.
func (s *SettlementService) HandleTransition(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TransitionedPayload)
	if !ok || event.Kind != domain.EntityKindTicket || payload.PreviousStatus != domain.TicketStatusStaked {
		return nil
	}
	var err error
	switch payload.NewStatus {
	case domain.TicketStatusCheckedIn:
		_, err = s.Release(ctx, event.EntityID, "")
	case domain.TicketStatusForfeited:
		_, err = s.Forfeit(ctx, event.EntityID, "")
	}
	return err
}

// Verify checks reference on the configured network against the expected
// recipient and minimum amount. A recipient mismatch only rejects when
// strict recipient checking is enabled.
func (s *SettlementService) Verify(ctx context.Context, entityID, expectedRecipient string, expectedAmount float64, reference string) VerificationResult {
	client, ok := s.chains[s.cfg.Network]
	if !ok {
		return VerificationResult{Error: fmt.Sprintf("no chain client for network %q", s.cfg.Network)}
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerificationResult{Error: "transaction reference is required"}
	}

	tx, err := client.LookupTransaction(ctx, reference)
	if err != nil {
		s.logger.Warn("chain lookup failed",
			zap.String("entity_id", entityID),
			zap.String("network", client.Network()),
			zap.String("reference", reference),
			zap.Error(err))
		return VerificationResult{Error: err.Error()}
	}
	switch {
	case !tx.Found:
		return VerificationResult{Error: "transaction not found"}
	case tx.Pending:
		return VerificationResult{Error: "transaction not yet confirmed"}
	case tx.Failed:
		return VerificationResult{Error: "transaction failed on chain"}
	}

	expectedWei, err := chain.EtherToWei(expectedAmount)
	if err != nil {
		return VerificationResult{Error: err.Error()}
	}
	if tx.ValueWei == nil || tx.ValueWei.Cmp(expectedWei) < 0 {
		return VerificationResult{Error: fmt.Sprintf("transferred %s wei, expected at least %s", weiString(tx.ValueWei), expectedWei)}
	}

	if expectedRecipient != "" && !tx.HasRecipient(expectedRecipient) {
		s.logger.Warn("settlement recipient mismatch",
			zap.String("entity_id", entityID),
			zap.String("reference", tx.Hash),
			zap.String("expected", expectedRecipient),
			zap.Strings("actual", tx.Recipients),
			zap.Bool("strict", s.cfg.StrictRecipientCheck))
		if s.cfg.StrictRecipientCheck {
			return VerificationResult{Error: "transaction recipient does not match escrow address"}
		}
	}

	verifiedAt := s.clock().UTC()
	return VerificationResult{
		Verified: true,
		Info: &domain.StakeRecord{
			Amount:        chain.WeiToEther(tx.ValueWei),
			Currency:      s.cfg.StakeCurrency,
			Network:       client.Network(),
			TxHash:        tx.Hash,
			WalletAddress: tx.Sender,
			VerifiedAt:    &verifiedAt,
		},
	}
}

// VerifyStake checks a stake for a ticket against the configured escrow
// address and stake amount. It never writes.
func (s *SettlementService) VerifyStake(ctx context.Context, ticketID, wallet, reference string) (VerificationResult, error) {
	if _, err := s.entities.Get(ctx, domain.EntityKindTicket, ticketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return VerificationResult{}, domain.NewEntityNotFound(domain.EntityKindTicket, ticketID)
		}
		return VerificationResult{}, domain.NewDatabaseError(domain.EntityKindTicket, ticketID, err)
	}
	res := s.Verify(ctx, ticketID, s.cfg.EscrowAddress, s.cfg.StakeAmount, reference)
	if !res.Verified {
		return res, domain.NewVerificationFailed(ticketID, res.Error)
	}
	if other, err := s.stakedWith(ctx, res.Info.TxHash, ticketID); err != nil {
		return VerificationResult{}, err
	} else if other != "" {
		s.logger.Warn("stake reference already used",
			zap.String("ticket_id", ticketID),
			zap.String("reference", res.Info.TxHash),
			zap.String("staked_ticket_id", other))
		res = VerificationResult{Error: fmt.Sprintf("transaction already staked ticket %s", other)}
		return res, domain.NewVerificationFailed(ticketID, res.Error)
	}
	if wallet = strings.TrimSpace(wallet); wallet != "" {
		if res.Info.WalletAddress != "" && !strings.EqualFold(res.Info.WalletAddress, wallet) {
			s.logger.Warn("stake sender differs from declared wallet",
				zap.String("ticket_id", ticketID),
				zap.String("sender", res.Info.WalletAddress),
				zap.String("wallet", wallet))
		}
		res.Info.WalletAddress = wallet
	}
	return res, nil
}

// Release returns the stake of a checked-in ticket to holder, or to the
// staked wallet when holder is empty.
func (s *SettlementService) Release(ctx context.Context, ticketID, holder string) (*SettlementResult, error) {
	return s.settle(ctx, settlement{
		ticketID:  ticketID,
		holder:    holder,
		allowed:   []domain.Status{domain.TicketStatusCheckedIn, domain.TicketStatusScanned},
		cause:     domain.EventTypeTicketCheckedIn,
		outcome:   domain.EventTypeSettlementReleased,
		operation: "release",
	})
}

// Forfeit moves the stake of a forfeited ticket to the treasury.
func (s *SettlementService) Forfeit(ctx context.Context, ticketID, holder string) (*SettlementResult, error) {
	return s.settle(ctx, settlement{
		ticketID:  ticketID,
		holder:    holder,
		allowed:   []domain.Status{domain.TicketStatusForfeited},
		cause:     domain.EventTypeTicketForfeited,
		outcome:   domain.EventTypeSettlementForfeited,
		operation: "forfeit",
	})
}

type settlement struct {
	ticketID  string
	holder    string
	allowed   []domain.Status
	cause     domain.EventType
	outcome   domain.EventType
	operation string
}

// errNoStake aborts a settlement claim for a ticket that was never staked.
var errNoStake = errors.New("ticket has no recorded stake")

// claim is what a settlement needs once its SETTLEMENT_REQUESTED envelope
// is committed. prior is set instead when the settlement already succeeded.
type claim struct {
	prior    *domain.AuditEnvelope
	inFlight *domain.AuditEnvelope
	envelope domain.AuditEnvelope
	cause    *domain.AuditEnvelope
	to       string
	holder   string
	amount   float64
}

// settle moves funds at most once per ticket. Under the ticket's row lock
// it looks at the latest claim or outcome: a success is returned as is, an
// open claim is a conflict, and anything else lets this call write a new
// claim. The transfer runs only after that claim has committed.
func (s *SettlementService) settle(ctx context.Context, op settlement) (*SettlementResult, error) {
	entity, err := s.entities.Get(ctx, domain.EntityKindTicket, op.ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewEntityNotFound(domain.EntityKindTicket, op.ticketID)
		}
		return nil, domain.NewDatabaseError(domain.EntityKindTicket, op.ticketID, err)
	}
	if !containsStatus(op.allowed, entity.Status) {
		return nil, domain.NewGuardFailed(domain.EntityKindTicket, op.ticketID, entity.Status, op.allowed[0],
			fmt.Sprintf("stake %s requires a committed %s transition", op.operation, op.allowed[0]))
	}

	c, err := s.claim(ctx, op)
	switch {
	case errors.Is(err, errNoStake):
		return nil, domain.NewGuardFailed(domain.EntityKindTicket, op.ticketID, entity.Status, op.allowed[0], errNoStake.Error())
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.NewEntityNotFound(domain.EntityKindTicket, op.ticketID)
	case err != nil:
		s.logger.Error("unable to claim settlement",
			zap.String("ticket_id", op.ticketID),
			zap.String("operation", op.operation),
			zap.Error(err))
		return nil, domain.NewDatabaseError(domain.EntityKindTicket, op.ticketID, err)
	}
	if c.prior != nil {
		return &SettlementResult{Success: true, TxHash: c.prior.PayloadString("txHash"), EnvelopeID: c.prior.ID}, nil
	}
	if c.inFlight != nil {
		return nil, apperrors.NewConflict("settlement already in progress", map[string]any{
			"ticket_id":  op.ticketID,
			"claim_id":   c.inFlight.ID,
			"claimed_at": c.inFlight.CreatedAt,
		})
	}

	payload := map[string]any{
		"operation": op.operation,
		"holder":    c.holder,
		"to":        c.to,
		"amount":    c.amount,
		"currency":  c.envelope.PayloadString("currency"),
		"network":   s.cfg.Network,
		"claimId":   c.envelope.ID,
	}
	txHash, transferErr := s.transfer(ctx, c.to, c.amount)
	eventType := op.outcome
	if transferErr != nil {
		eventType = domain.EventTypeSettlementFailed
		payload["error"] = transferErr.Error()
		s.logger.Error("settlement transfer failed",
			zap.String("ticket_id", op.ticketID),
			zap.String("operation", op.operation),
			zap.Error(transferErr))
	} else {
		payload["txHash"] = txHash
	}

	envelope := &domain.AuditEnvelope{
		EntityType:    domain.EntityKindTicket,
		EntityID:      op.ticketID,
		EventType:     eventType,
		Actor:         c.envelope.Actor,
		CorrelationID: c.envelope.CorrelationID,
		CausationID:   c.envelope.CausationID,
		Payload:       payload,
	}
	// The outcome is recorded even if the caller has gone away; a missing
	// outcome leaves the claim open and blocks further transfers.
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), envelope); err != nil {
		s.logger.Error("unable to record settlement outcome",
			zap.String("ticket_id", op.ticketID),
			zap.String("event_type", string(eventType)),
			zap.String("claim_id", c.envelope.ID),
			zap.String("tx", txHash),
			zap.Error(err))
		return nil, err
	}

	result := &SettlementResult{Success: transferErr == nil, TxHash: txHash, EnvelopeID: envelope.ID}
	if transferErr != nil {
		result.Error = transferErr.Error()
	}
	s.publish(ctx, envelope, entity.OwnerID, result)
	return result, nil
}

// claim runs the check-and-claim step in one transaction.
func (s *SettlementService) claim(ctx context.Context, op settlement) (*claim, error) {
	c := &claim{}
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		*c = claim{}
		if err := r.Lifecycle.Lock(ctx, domain.EntityKindTicket, op.ticketID); err != nil {
			return err
		}
		last, err := latestOf(ctx, r.Audit, op.ticketID,
			domain.EventTypeSettlementRequested, op.outcome, domain.EventTypeSettlementFailed)
		if err != nil {
			return err
		}
		if last != nil {
			switch last.EventType {
			case op.outcome:
				c.prior = last
				return nil
			case domain.EventTypeSettlementRequested:
				c.inFlight = last
				return nil
			}
		}

		stake, err := latestOf(ctx, r.Audit, op.ticketID, domain.EventTypeTicketStaked)
		if err != nil {
			return err
		}
		if stake == nil {
			return errNoStake
		}
		if c.cause, err = latestOf(ctx, r.Audit, op.ticketID, op.cause); err != nil {
			return err
		}

		c.holder = strings.TrimSpace(op.holder)
		if c.holder == "" {
			c.holder = stake.PayloadString("walletAddress")
		}
		c.to = c.holder
		if op.outcome == domain.EventTypeSettlementForfeited {
			c.to = s.cfg.TreasuryAddress
		}
		c.amount, _ = stake.Payload["amount"].(float64)

		c.envelope = domain.AuditEnvelope{
			EntityType:    domain.EntityKindTicket,
			EntityID:      op.ticketID,
			EventType:     domain.EventTypeSettlementRequested,
			Actor:         domain.SystemActor(domain.ActorTypeSystem),
			CorrelationID: stake.CorrelationID,
			Payload: map[string]any{
				"operation": op.operation,
				"holder":    c.holder,
				"to":        c.to,
				"amount":    c.amount,
				"currency":  stake.PayloadString("currency"),
			},
		}
		if c.cause != nil {
			c.envelope.CorrelationID = c.cause.CorrelationID
			causeID := c.cause.ID
			c.envelope.CausationID = &causeID
		}
		return r.Audit.Append(ctx, &c.envelope)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SettlementService) transfer(ctx context.Context, to string, amount float64) (string, error) {
	client, ok := s.chains[s.cfg.Network]
	if !ok {
		return "", fmt.Errorf("no chain client for network %q", s.cfg.Network)
	}
	if strings.TrimSpace(to) == "" {
		return "", errors.New("no destination address")
	}
	wei, err := chain.EtherToWei(amount)
	if err != nil {
		return "", err
	}
	return client.Transfer(ctx, to, wei)
}

// latestOf returns the ticket's newest envelope among eventTypes.
func latestOf(ctx context.Context, audit repository.AuditRepository, ticketID string, eventTypes ...domain.EventType) (*domain.AuditEnvelope, error) {
	found, err := audit.List(ctx, repository.AuditFilter{
		EntityType: domain.EntityKindTicket,
		EntityID:   ticketID,
		EventTypes: eventTypes,
		Order:      repository.NewestFirst,
		Limit:      1,
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// stakedWith returns the id of another ticket already staked with
// reference, or "" when the reference is unused.
func (s *SettlementService) stakedWith(ctx context.Context, reference, ticketID string) (string, error) {
	found, err := s.ledger.list(ctx, repository.AuditFilter{
		EntityType: domain.EntityKindTicket,
		EventTypes: []domain.EventType{domain.EventTypeTicketStaked},
		TxHash:     reference,
	})
	if err != nil {
		return "", err
	}
	for _, env := range found {
		if env.EntityID != ticketID {
			return env.EntityID, nil
		}
	}
	return "", nil
}

func (s *SettlementService) publish(ctx context.Context, envelope *domain.AuditEnvelope, holderID string, result *SettlementResult) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        envelope.ID,
		Type:      events.EventSettlementCompleted,
		Kind:      domain.EntityKindTicket,
		EntityID:  envelope.EntityID,
		Actor:     envelope.Actor,
		Timestamp: envelope.CreatedAt,
		Payload: events.SettlementPayload{
			Outcome:       envelope.EventType,
			HolderID:      holderID,
			TxHash:        result.TxHash,
			CorrelationID: envelope.CorrelationID,
			Error:         result.Error,
		},
	})
	if err != nil {
		s.logger.Warn("settlement subscribers failed", zap.String("ticket_id", envelope.EntityID), zap.Error(err))
	}
}

func containsStatus(set []domain.Status, status domain.Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
