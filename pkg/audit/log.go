// Package audit provides an append-only, best-effort record of every
// operation a Document Engine has applied, independent of the bounded
// operationsTail kept for immediate-echo transforms (spec.md §9's
// "Operation history retention" open question; see DESIGN.md).
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kolabo/syncpad/pkg/ot"
)

// Log wraps a SQLite connection used purely as a durable, queryable
// append-only sink; it is never the primary document store (that is
// pkg/document.FileStore's job).
type Log struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or attaches to the SQLite database at uri and ensures its
// schema exists.
func Open(uri string, log *zap.Logger) (*Log, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Log{db: db, log: log}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS operation_audit (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL,
	version     INTEGER NOT NULL,
	op_id       TEXT NOT NULL,
	kind        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	content     TEXT,
	length      INTEGER,
	user_id     TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operation_audit_document ON operation_audit(document_id, version);
`

// Record persists one flush's applied batch. It implements
// engine.AuditSink; failures are logged, never propagated, since a full
// or unavailable audit log must not hold up a document-sync.
func (l *Log) Record(documentID string, version int, ops []ot.Op) {
	tx, err := l.db.Begin()
	if err != nil {
		l.log.Warn("audit begin failed", zap.String("documentId", documentID), zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO operation_audit
		(document_id, version, op_id, kind, position, content, length, user_id, client_id, timestamp, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		l.log.Warn("audit prepare failed", zap.String("documentId", documentID), zap.Error(err))
		return
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, op := range ops {
		if _, err := stmt.Exec(documentID, version, op.ID, string(op.Kind), op.Position, op.Content, op.Length, op.UserID, op.ClientID, op.Timestamp, now); err != nil {
			l.log.Warn("audit insert failed", zap.String("documentId", documentID), zap.Error(err))
			return
		}
	}
	if err := tx.Commit(); err != nil {
		l.log.Warn("audit commit failed", zap.String("documentId", documentID), zap.Error(err))
	}
}

// Entry is one row of recorded history, for external tooling queries.
type Entry struct {
	Seq        int64  `json:"seq"`
	DocumentID string `json:"documentId"`
	Version    int    `json:"version"`
	Op         ot.Op  `json:"operation"`
	RecordedAt int64  `json:"recordedAt"`
}

// History returns every recorded operation for documentID in
// application order, for offline audit/debugging tooling.
func (l *Log) History(documentID string) ([]Entry, error) {
	rows, err := l.db.Query(`SELECT seq, document_id, version, op_id, kind, position, content, length, user_id, client_id, timestamp, recorded_at
		FROM operation_audit WHERE document_id = ? ORDER BY seq ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var content sql.NullString
		var length sql.NullInt64
		if err := rows.Scan(&e.Seq, &e.DocumentID, &e.Version, &e.Op.ID, &e.Op.Kind, &e.Op.Position, &content, &length, &e.Op.UserID, &e.Op.ClientID, &e.Op.Timestamp, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Op.Content = content.String
		e.Op.Length = int(length.Int64)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarshalEntries is a small convenience used by the metadata API's debug
// endpoint to avoid importing encoding/json at the call site.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

func (l *Log) Close() error {
	return l.db.Close()
}
