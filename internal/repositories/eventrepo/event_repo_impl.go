package eventrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/internal/infrastructure/database"
)

type eventRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IEventRepository {
	return &eventRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

func (r *eventRepositoryImpl) Create(ctx context.Context, event domain.SessionEvent) (domain.SessionEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO session_events (session_id, event_type, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		event.SessionID,
		string(event.EventType),
		string(event.Payload),
	)

	if err := row.Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt); err != nil {
		r.logger.Error().Err(err).Str("session_id", event.SessionID).Str("event_type", string(event.EventType)).Msg("Failed to create session event")
		return domain.SessionEvent{}, fmt.Errorf("failed to create session event: %w", err)
	}

	return event, nil
}

func (r *eventRepositoryImpl) RecordOutcome(ctx context.Context, eventID string, status *int, responseBody, errText string) error {
	var responseStatus sql.NullInt32
	if status != nil {
		responseStatus = sql.NullInt32{Int32: int32(*status), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE session_events SET
			response_status = $2,
			response_body = NULLIF($3, ''),
			error = NULLIF($4, ''),
			updated_at = now()
		 WHERE id = $1`,
		eventID, responseStatus, responseBody, errText); err != nil {
		r.logger.Error().Err(err).Str("event_id", eventID).Msg("Failed to record delivery outcome")
		return fmt.Errorf("failed to record delivery outcome: %w", err)
	}

	return nil
}

func (r *eventRepositoryImpl) ListBySession(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, payload, response_status, response_body, error, created_at, updated_at
		 FROM session_events
		 WHERE session_id = $1
		 ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list session events")
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	var events []domain.SessionEvent
	for rows.Next() {
		var event domain.SessionEvent
		var eventType string
		var responseStatus sql.NullInt32
		var responseBody, errText sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&eventType,
			&event.Payload,
			&responseStatus,
			&responseBody,
			&errText,
			&event.CreatedAt,
			&event.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}

		event.EventType = domain.EventType(eventType)
		if responseStatus.Valid {
			code := int(responseStatus.Int32)
			event.ResponseStatus = &code
		}
		event.ResponseBody = responseBody.String
		event.Error = errText.String
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session events: %w", err)
	}
	return events, nil
}
