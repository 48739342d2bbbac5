package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    attributes TEXT NOT NULL,
    digest TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
`

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("auditd storage path must be configured")

// Record is one persisted audit entry.
type Record struct {
	ID         string
	EventType  string
	Attributes map[string]string
	Digest     string
	RecordedAt time.Time
}

// Storage wraps the auditd persistence layer.
type Storage struct {
	db *sql.DB
}

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Storage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordEvent persists an engine event with a content digest so an external
// verifier can detect tampering with the trail.
func (s *Storage) RecordEvent(ctx context.Context, eventType string, attributes map[string]string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, fmt.Errorf("storage not configured")
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return Record{}, fmt.Errorf("event type required")
	}
	encoded := encodeAttributes(attributes)
	record := Record{
		ID:         uuid.NewString(),
		EventType:  eventType,
		Attributes: attributes,
		Digest:     digest(eventType, encoded),
		RecordedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO audit_events(id, event_type, attributes, digest, recorded_at)
        VALUES(?, ?, ?, ?, ?)
    `, record.ID, record.EventType, encoded, record.Digest, record.RecordedAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert event: %w", err)
	}
	return record, nil
}

// List returns the most recent entries, newest first. A non-empty eventType
// filters the trail to that type.
func (s *Storage) List(ctx context.Context, eventType string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT id, event_type, attributes, digest, recorded_at
        FROM audit_events
    `
	args := []interface{}{}
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var record Record
		var encoded string
		if err := rows.Scan(&record.ID, &record.EventType, &encoded, &record.Digest, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.Attributes = decodeAttributes(encoded)
		out = append(out, record)
	}
	return out, rows.Err()
}

// Verify recomputes the digest for a record and reports whether it matches.
func Verify(record Record) bool {
	return record.Digest == digest(record.EventType, encodeAttributes(record.Attributes))
}

// encodeAttributes renders attributes as sorted key=value lines so the digest
// is stable regardless of map order.
func encodeAttributes(attributes map[string]string) string {
	if len(attributes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(attributes[key])
	}
	return sb.String()
}

func decodeAttributes(encoded string) map[string]string {
	if encoded == "" {
		return nil
	}
	out := make(map[string]string)
	for _, line := range strings.Split(encoded, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		out[key] = value
	}
	return out
}

func digest(eventType, encodedAttributes string) string {
	sum := blake3.Sum256([]byte(eventType + "\x00" + encodedAttributes))
	return hex.EncodeToString(sum[:])
}
