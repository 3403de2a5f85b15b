package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/core/common/pagination"
	auditDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/audit"
	"github.com/frahmantamala/fleet-ledger/internal/core/events"
)

type RepositoryAPI interface {
	// Create ignores an event id that is already stored.
	Create(ctx context.Context, row *auditDatamodel.LedgerAuditLog) error
	List(ctx context.Context, filter ListFilter, limit int) ([]*auditDatamodel.LedgerAuditLog, error)
}

type ListFilter struct {
	EntityType string
	EntityID   int64
	DriverID   int64
}

var entityTypes = []string{events.EntityDriver, events.EntityObligation, events.EntityPayment}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// HandleLedgerEvent persists a committed ledger event. Other event kinds are
// skipped.
func (s *Service) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.LedgerEvent)
	if !ok {
		s.logger.Debug("audit skipping non-ledger event", "event_type", event.EventType())
		return nil
	}

	if err := s.repo.Create(ctx, FromEvent(evt)); err != nil {
		s.logger.Error("failed to write audit entry",
			"error", err,
			"event_id", evt.EventID(),
			"event_type", evt.EventType())
		return fmt.Errorf("write audit entry %s: %w", evt.EventID(), err)
	}

	s.logger.Debug("audit entry written",
		"event_id", evt.EventID(),
		"event_type", evt.EventType(),
		"entity_type", evt.EntityType,
		"entity_id", evt.EntityID)
	return nil
}

func (s *Service) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.AllEvents, s.HandleLedgerEvent)
	s.logger.Info("audit event handlers registered", "handlers", []string{events.AllEvents})
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit int) ([]*Entry, error) {
	if filter.EntityType != "" {
		found := false
		for _, t := range entityTypes {
			if t == filter.EntityType {
				found = true
				break
			}
		}
		if !found {
			return nil, internal.NewValidationFieldError("entity_type", "entity_type must be one of driver, obligation, payment", internal.ErrCodeValidationFailed)
		}
	}
	if filter.EntityID > 0 && filter.EntityType == "" {
		return nil, internal.NewValidationFieldError("entity_type", "entity_type is required with entity_id", internal.ErrCodeValidationFailed)
	}
	_, limit = pagination.Normalize(1, limit)

	rows, err := s.repo.List(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}
