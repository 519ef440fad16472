package worker

import (
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/service"
)

// StartSubscribers registers the reactions to committed transitions.
func StartSubscribers(dispatcher events.Dispatcher, notifications *service.NotificationService, settlement *service.SettlementService) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if settlement != nil {
		settlement.RegisterHandlers(dispatcher)
	}
}
