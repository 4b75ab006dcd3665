package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hoanglv/swapstation-management/internal/core/events"
)

// EventHandler credits subscription balances when a payment transitions to
// SUCCESS. It is subscribed synchronously, so the credit happens exactly
// once per fresh transition: replays never reach the bus.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

func (h *EventHandler) HandlePaymentSucceeded(ctx context.Context, event events.Event) error {
	paymentEvent, ok := event.(*events.PaymentSucceededEvent)
	if !ok {
		return fmt.Errorf("expected PaymentSucceededEvent, got %T", event)
	}

	h.logger.Info("crediting subscription for confirmed payment",
		"txn_ref", paymentEvent.TxnRef,
		"user_id", paymentEvent.UserID,
		"amount_vnd", paymentEvent.AmountVND)

	return h.service.Credit(paymentEvent.UserID, paymentEvent.PackID, paymentEvent.AmountVND)
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentSucceeded, h.HandlePaymentSucceeded)
}
