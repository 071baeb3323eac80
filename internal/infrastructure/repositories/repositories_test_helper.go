package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createPaymentStateTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_states (
		payment_hash TEXT PRIMARY KEY,
		content_id INTEGER NOT NULL DEFAULT 0,
		user_session_id TEXT NOT NULL,
		status TEXT NOT NULL,
		amount_sat INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		paid_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createIdempotencyTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE idempotency_mappings (
		idempotency_key TEXT PRIMARY KEY,
		payment_hash TEXT NOT NULL,
		invoice TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME
	);`)
}
