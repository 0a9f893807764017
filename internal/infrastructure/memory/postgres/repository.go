package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
)

// Arbitrary but stable key so concurrent instances serialize schema setup.
const schemaLockKey = 744203911

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id         BIGSERIAL PRIMARY KEY,
    user_id    TEXT        NOT NULL,
    role       TEXT        NOT NULL,
    content    TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_user_created
    ON conversation_turns (user_id, created_at DESC, id DESC);
`

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ConversationRepository stores per-user dialogue turns for the short-term
// history window the assembler consumes.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

var _ ports.ConversationMemory = (*ConversationRepository)(nil)

// EnsureSchema creates the table under an advisory lock so several instances
// starting at once do not race the DDL.
func (r *ConversationRepository) EnsureSchema(ctx context.Context) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", schemaLockKey)
	}()

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure conversation schema: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Append(ctx context.Context, userID string, turn domain.ConversationTurn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (user_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4)`,
		userID, string(turn.Role), turn.Content, createdAt,
	)
	if err != nil {
		return fmt.Errorf("append conversation turn: %w", err)
	}
	return nil
}

// Recent returns at most n turns for the user, oldest first. The query walks
// the index newest-first and the slice is reversed in memory.
func (r *ConversationRepository) Recent(ctx context.Context, userID string, n int) ([]domain.ConversationTurn, error) {
	if n < 1 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT role, content, created_at
		 FROM conversation_turns
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		var role string
		if err := rows.Scan(&role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		turn.Role = domain.TurnRole(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
