package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/coachhub-backend/internal/database"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated in-memory SQLite database.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign keys for SQLite (required for cascade delete)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

func closeTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func resetTables(t *testing.T, db *gorm.DB) {
	for _, table := range []string{
		"email_messages", "email_threads", "email_accounts",
		"direct_messages", "conversation_participants", "conversations",
		"coach_client_relationships", "admins", "clients", "coaches",
	} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
}

func participantRows(participants ...models.Participant) []models.ConversationParticipant {
	rows := make([]models.ConversationParticipant, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, models.ConversationParticipant{
			ParticipantID:   p.ID,
			ParticipantType: p.Type,
			ParticipantKey:  p.Key(),
		})
	}
	return rows
}

func ptr[T any](v T) *T {
	return &v
}

func at(minutes int) time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}
