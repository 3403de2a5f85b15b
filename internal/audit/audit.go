package audit

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	auditDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/audit"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
)

// Entry is one committed ledger change as seen by the audit trail.
type Entry struct {
	ID         int64
	EventID    string
	EventType  string
	EntityType string
	EntityID   int64
	DriverID   int64
	ActorID    string
	Payload    map[string]interface{}
	CreatedAt  time.Time
}

type EntryResponse struct {
	ID         int64                  `json:"id"`
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	DriverID   int64                  `json:"driver_id"`
	ActorID    string                 `json:"actor_id"`
	Payload    map[string]interface{} `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (e *Entry) ToResponse() EntryResponse {
	return EntryResponse{
		ID:         e.ID,
		EventID:    e.EventID,
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		DriverID:   e.DriverID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
		CreatedAt:  e.CreatedAt,
	}
}

func FromEvent(evt *events.LedgerEvent) *auditDatamodel.LedgerAuditLog {
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		payload = []byte("{}")
	}
	return &auditDatamodel.LedgerAuditLog{
		EventID:    evt.EventID(),
		EventType:  evt.EventType(),
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		DriverID:   evt.DriverID,
		ActorID:    evt.ActorID,
		Payload:    datatypes.JSON(payload),
		CreatedAt:  evt.OccurredAt(),
	}
}

func FromDataModel(row *auditDatamodel.LedgerAuditLog) *Entry {
	e := &Entry{
		ID:         row.ID,
		EventID:    row.EventID,
		EventType:  row.EventType,
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		DriverID:   row.DriverID,
		ActorID:    row.ActorID,
		CreatedAt:  row.CreatedAt,
	}
	if len(row.Payload) > 0 {
		_ = json.Unmarshal(row.Payload, &e.Payload)
	}
	return e
}
