package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"loyalty-relay/internal/models"
)

// execer is satisfied by *pgxpool.Pool and *DB
type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Journal appends one row per routing outcome. It is write-only: nothing in
// the relay reads it back, so routing stays stateless.
type Journal struct {
	db execer
}

func NewJournal(db execer) *Journal {
	return &Journal{db: db}
}

// Record implements router.Recorder
func (j *Journal) Record(ctx context.Context, requestID string, order *models.Order, outcome *models.RoutingOutcome) error {
	actions := outcome.Actions
	if actions == nil {
		actions = []models.ActionResult{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("marshal journal actions: %w", err)
	}

	var customerID *string
	if outcome.Processed != nil {
		customerID = &outcome.Processed.CustomerID
	}
	var reason *string
	if outcome.Reason != "" {
		reason = &outcome.Reason
	}

	_, err = j.db.Exec(ctx, InsertJournalEntrySQL,
		requestID,
		order.ID.String(),
		string(order.Status),
		customerID,
		string(outcome.Status),
		reason,
		actionsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}
