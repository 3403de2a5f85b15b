package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeObligationsCreated   = "obligations.created"
	EventTypeObligationUpdated    = "obligation.updated"
	EventTypeObligationDeleted    = "obligation.deleted"
	EventTypeObligationMarkedPaid = "obligation.marked_paid"

	EventTypePaymentRecorded    = "payment.recorded"
	EventTypePaymentUpdated     = "payment.updated"
	EventTypePaymentDeleted     = "payment.deleted"
	EventTypePaymentReallocated = "payment.reallocated"
)

const (
	EntityDriver     = "driver"
	EntityObligation = "obligation"
	EntityPayment    = "payment"
)

// LedgerEvent announces a committed change to obligations or payments.
type LedgerEvent struct {
	BaseEvent
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	DriverID   int64  `json:"driver_id"`
	ActorID    string `json:"actor_id"`
}

func NewLedgerEvent(eventType, entityType string, entityID, driverID int64, actorID string, data map[string]interface{}) *LedgerEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &LedgerEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		EntityType: entityType,
		EntityID:   entityID,
		DriverID:   driverID,
		ActorID:    actorID,
	}
}
