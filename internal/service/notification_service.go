package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/notifier"
)

var transitionTemplates = map[domain.EntityKind]map[domain.Status]notifier.TemplateKind{
	domain.EntityKindEvent: {
		domain.EventStatusPublished: notifier.TemplateEventPublished,
		domain.EventStatusDraft:     notifier.TemplateEventUnpublished,
		domain.EventStatusLive:      notifier.TemplateEventStarted,
		domain.EventStatusEnded:     notifier.TemplateEventEnded,
	},
	domain.EntityKindTicket: {
		domain.TicketStatusApproved:  notifier.TemplateTicketApproved,
		domain.TicketStatusRejected:  notifier.TemplateTicketRejected,
		domain.TicketStatusIssued:    notifier.TemplateTicketIssued,
		domain.TicketStatusStaked:    notifier.TemplateTicketStaked,
		domain.TicketStatusCheckedIn: notifier.TemplateTicketCheckedIn,
		domain.TicketStatusRefunded:  notifier.TemplateTicketRefunded,
		domain.TicketStatusForfeited: notifier.TemplateTicketForfeited,
		domain.TicketStatusRevoked:   notifier.TemplateTicketRevoked,
	},
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notifier.Notifier
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, n notifier.Notifier, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   n,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events. Handlers run detached so a slow
// notifier never holds up the request that published.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventLifecycleTransitioned, events.Detached(n.handleTransitioned, nil))
	n.dispatcher.Subscribe(events.EventSettlementCompleted, events.Detached(n.handleSettlement, nil))
}

func (n *NotificationService) handleTransitioned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TransitionedPayload)
	if !ok {
		return nil
	}
	kind, ok := transitionTemplates[event.Kind][payload.NewStatus]
	if !ok || payload.OwnerID == "" {
		return nil
	}
	data := map[string]any{
		"entity_kind":     string(event.Kind),
		"entity_id":       event.EntityID,
		"previous_status": string(payload.PreviousStatus),
		"new_status":      string(payload.NewStatus),
		"correlation_id":  payload.CorrelationID,
	}
	if payload.EventID != "" {
		data["event_id"] = payload.EventID
	}
	n.send(ctx, payload.OwnerID, kind, data)
	return nil
}

func (n *NotificationService) handleSettlement(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SettlementPayload)
	if !ok || payload.HolderID == "" {
		return nil
	}
	kind := notifier.TemplateStakeReleased
	switch payload.Outcome {
	case domain.EventTypeSettlementForfeited:
		// The forfeit transition already notified the holder.
		return nil
	case domain.EventTypeSettlementFailed:
		kind = notifier.TemplateSettlementFailed
	}
	n.send(ctx, payload.HolderID, kind, map[string]any{
		"ticket_id":      event.EntityID,
		"tx_hash":        payload.TxHash,
		"correlation_id": payload.CorrelationID,
	})
	return nil
}

// send delivers with a bounded timeout. Failures are logged and dropped.
func (n *NotificationService) send(ctx context.Context, userID string, kind notifier.TemplateKind, data map[string]any) {
	if n.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.Timeout())
	defer cancel()
	if err := n.notifier.Notify(ctx, userID, kind, data); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("user_id", userID),
			zap.String("template", string(kind)),
			zap.Error(err))
	}
}
