package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-relay/internal/models"
)

type fakeExecer struct {
	sql  string
	args []interface{}
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestJournal_RecordSuccess(t *testing.T) {
	exec := &fakeExecer{}
	order := &models.Order{ID: "7", Status: models.StatusAccepted, CustomerEmail: "ana@example.com"}
	outcome := &models.RoutingOutcome{
		Status:    models.OutcomeSuccess,
		Processed: &models.ProcessedOrder{OrderID: "7", CustomerID: "card-1", Status: models.StatusAccepted},
		Actions: []models.ActionResult{
			{Action: models.SendMessage("hi"), Succeeded: true},
			{Action: models.AdjustPoints(1), Succeeded: true},
		},
	}

	require.NoError(t, NewJournal(exec).Record(context.Background(), "req-1", order, outcome))

	assert.Equal(t, InsertJournalEntrySQL, exec.sql)
	require.Len(t, exec.args, 7)
	assert.Equal(t, "req-1", exec.args[0])
	assert.Equal(t, "7", exec.args[1])
	assert.Equal(t, "accepted", exec.args[2])
	require.NotNil(t, exec.args[3])
	assert.Equal(t, "card-1", *exec.args[3].(*string))
	assert.Equal(t, "success", exec.args[4])
	assert.Nil(t, exec.args[5].(*string))

	var actions []models.ActionResult
	require.NoError(t, json.Unmarshal(exec.args[6].([]byte), &actions))
	assert.Len(t, actions, 2)
}

func TestJournal_RecordIgnored(t *testing.T) {
	exec := &fakeExecer{}
	order := &models.Order{ID: "8", Status: "missed", CustomerEmail: "ana@example.com"}

	require.NoError(t, NewJournal(exec).Record(context.Background(), "req-2", order, models.Ignored("unhandled status")))

	assert.Nil(t, exec.args[3].(*string))
	assert.Equal(t, "ignored", exec.args[4])
	assert.Equal(t, "unhandled status", *exec.args[5].(*string))
	assert.JSONEq(t, `[]`, string(exec.args[6].([]byte)))
}

func TestJournal_RecordError(t *testing.T) {
	exec := &fakeExecer{err: errors.New("connection refused")}
	order := &models.Order{ID: "9", Status: models.StatusPending}

	err := NewJournal(exec).Record(context.Background(), "req-3", order, models.Ignored("x"))
	assert.Error(t, err)
}

func TestGetMigrationFiles_Sorted(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_b.sql":   {Data: []byte("SELECT 2")},
		"migrations/001_a.sql":   {Data: []byte("SELECT 1")},
		"migrations/README.md":   {Data: []byte("docs")},
		"migrations/sub/003.sql": {Data: []byte("SELECT 3")},
	}

	files, err := getMigrationFiles(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "003.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := getMigrationFiles(migrationFS, "migrations")
	require.NoError(t, err)
	assert.Contains(t, files, "001_dispatch_journal.sql")
}
