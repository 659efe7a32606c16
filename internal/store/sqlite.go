// Package store persists engagement messages and session summaries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scamtrap/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ConversationStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: per-session serialization is the store's guarantee.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id      TEXT PRIMARY KEY,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		scam_detected   INTEGER DEFAULT 0,
		total_messages  INTEGER DEFAULT 0,
		intelligence    TEXT,
		agent_notes     TEXT
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		sender      TEXT NOT NULL,
		text        TEXT,
		timestamp   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, sender, text, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, string(msg.Sender), msg.Text, msg.Timestamp,
	)
	return err
}

func (s *SQLiteStore) Conversation(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, text, timestamp FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var sender string
		if err := rows.Scan(&sender, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Sender = domain.Sender(sender)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, rec domain.SessionRecord) error {
	intelJSON, err := json.Marshal(rec.Intelligence)
	if err != nil {
		return fmt.Errorf("marshal intelligence: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at, scam_detected, total_messages, intelligence, agent_notes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			scam_detected = excluded.scam_detected,
			total_messages = excluded.total_messages,
			intelligence = excluded.intelligence,
			agent_notes = excluded.agent_notes`,
		rec.SessionID, createdAt, boolToInt(rec.ScamDetected), rec.TotalMessages, string(intelJSON), rec.AgentNotes,
	)
	return err
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, created_at, scam_detected, total_messages, intelligence, agent_notes
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var scam int
		var intelJSON, notes sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.CreatedAt, &scam, &rec.TotalMessages, &intelJSON, &notes); err != nil {
			return nil, err
		}
		rec.ScamDetected = scam != 0
		rec.AgentNotes = notes.String
		if intelJSON.Valid && intelJSON.String != "" {
			if err := json.Unmarshal([]byte(intelJSON.String), &rec.Intelligence); err != nil {
				s.logger.Warn("cannot decode stored intelligence", "session", rec.SessionID, "err", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
