package audit

import (
	"time"

	"gorm.io/datatypes"
)

type LedgerAuditLog struct {
	ID         int64          `gorm:"primaryKey"`
	EventID    string         `gorm:"column:event_id;size:36;not null;uniqueIndex"`
	EventType  string         `gorm:"column:event_type;size:60;not null;index"`
	EntityType string         `gorm:"column:entity_type;size:30;not null;index:idx_audit_entity,priority:1"`
	EntityID   int64          `gorm:"column:entity_id;not null;index:idx_audit_entity,priority:2"`
	DriverID   int64          `gorm:"column:driver_id;index"`
	ActorID    string         `gorm:"column:actor_id;size:64"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerAuditLog) TableName() string {
	return "ledger_audit_logs"
}
