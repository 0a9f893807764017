package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

func TestAppendInsertsTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs("5541999990000", "user", "qual o prazo?", createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewConversationRepository(db)
	err = repo.Append(context.Background(), "5541999990000", domain.ConversationTurn{
		Role:      domain.TurnRoleUser,
		Content:   "qual o prazo?",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentReturnsOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	older := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	// The query is newest-first; the repository reverses.
	rows := sqlmock.NewRows([]string{"role", "content", "created_at"}).
		AddRow("assistant", "24 horas [1]", newer).
		AddRow("user", "qual o prazo?", older)
	mock.ExpectQuery("SELECT role, content, created_at").
		WithArgs("5541999990000", 6).
		WillReturnRows(rows)

	repo := NewConversationRepository(db)
	turns, err := repo.Recent(context.Background(), "5541999990000", 6)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != domain.TurnRoleUser || turns[1].Role != domain.TurnRoleAssistant {
		t.Fatalf("wrong order: %+v", turns)
	}
	if !turns[0].CreatedAt.Before(turns[1].CreatedAt) {
		t.Fatal("turns must come back oldest first")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentZeroLimitShortCircuits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewConversationRepository(db)
	turns, err := repo.Recent(context.Background(), "u", 0)
	if err != nil || turns != nil {
		t.Fatalf("Recent(0) = (%v, %v), want (nil, nil)", turns, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(schemaLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_turns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(schemaLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewConversationRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
