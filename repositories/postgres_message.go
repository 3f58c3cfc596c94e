package repositories

import (
	"context"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         BIGSERIAL PRIMARY KEY,
	company_id TEXT        NOT NULL,
	student_id TEXT        NOT NULL,
	sender     TEXT        NOT NULL CHECK (sender IN ('student', 'company')),
	message    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chats_conversation_idx ON chats (company_id, student_id, id);
CREATE INDEX IF NOT EXISTS chats_student_idx ON chats (student_id, company_id);`

// PgMessageRepository stores the conversation log in the PostgreSQL chats
// table. The BIGSERIAL primary key gives the atomic, monotonic id.
type PgMessageRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPgMessageRepository(pool *pgxpool.Pool, log *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{pool: pool, log: log}
}

// EnsureSchema creates the chats table and its indexes when missing.
func (r *PgMessageRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %v", errors.ErrPersistence, err)
	}
	return nil
}

// Append takes a transaction scoped advisory lock on the conversation before
// inserting. Every instance sharing the database therefore commits appends of
// one conversation one at a time, and the id drawn from the sequence follows
// that order. created_at is clamped to the previous message of the
// conversation so it never goes backwards as the id grows.
func (r *PgMessageRepository) Append(ctx context.Context, key chat.ConversationKey, sender chat.Sender, body string) (chat.Message, error) {
	if !sender.Valid() {
		return chat.Message{}, fmt.Errorf("%w: %d", errors.ErrUnknownSender, int(sender))
	}
	message := chat.Message{Key: key, Sender: sender, Body: body}
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}
		return tx.QueryRow(ctx,
			`INSERT INTO chats (company_id, student_id, sender, message, created_at)
			 VALUES ($1, $2, $3, $4, GREATEST(clock_timestamp(), (
			     SELECT created_at FROM chats
			     WHERE company_id = $1 AND student_id = $2
			     ORDER BY id DESC LIMIT 1)))
			 RETURNING id, created_at`,
			key.CompanyID, key.StudentID, sender.String(), body,
		).Scan(&id, &message.CreatedAt)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: insert message: %v", errors.ErrPersistence, err)
	}
	message.ID = uint64(id)
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}

func (r *PgMessageRepository) ListOrdered(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender, message, created_at
		 FROM chats
		 WHERE company_id = $1 AND student_id = $2
		 ORDER BY id ASC`,
		key.CompanyID, key.StudentID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", errors.ErrPersistence, key, err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		var (
			id        int64
			sender    string
			body      string
			createdAt time.Time
		)
		if err := row.Scan(&id, &sender, &body, &createdAt); err != nil {
			return chat.Message{}, err
		}
		parsed, err := chat.ParseSender(sender)
		if err != nil {
			return chat.Message{}, err
		}
		return chat.Message{ID: uint64(id), Key: key, Sender: parsed, Body: body, CreatedAt: createdAt.UTC()}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", errors.ErrPersistence, key, err)
	}
	if messages == nil {
		messages = make([]chat.Message, 0)
	}
	return messages, nil
}

func (r *PgMessageRepository) ListCounterparts(ctx context.Context, party chat.Sender, id string) ([]string, error) {
	var query string
	switch party {
	case chat.SenderStudent:
		query = `SELECT DISTINCT company_id FROM chats WHERE student_id = $1 ORDER BY company_id`
	case chat.SenderCompany:
		query = `SELECT DISTINCT student_id FROM chats WHERE company_id = $1 ORDER BY student_id`
	default:
		return nil, fmt.Errorf("%w: %d", errors.ErrUnknownSender, int(party))
	}
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list counterparts of %s %s: %v", errors.ErrPersistence, party, id, err)
	}
	counterparts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: scan counterparts: %v", errors.ErrPersistence, err)
	}
	if counterparts == nil {
		counterparts = make([]string, 0)
	}
	return counterparts, nil
}

func (r *PgMessageRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping postgres: %v", errors.ErrPersistence, err)
	}
	return nil
}
