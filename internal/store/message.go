package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// AppendMessage inserts a new message. Messages are append-only: there is no
// update path except MarkProcessed.
func (s *Store) AppendMessage(m *types.AgentMessage) error {
	artifacts, err := json.Marshal(m.Artifacts)
	if err != nil {
		return apmaserr.Storage(err, "marshal message artifacts")
	}
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return apmaserr.Storage(err, "marshal message metadata")
	}

	_, err = s.db.Exec(`
		INSERT INTO messages (id, timestamp, from_role, to_role, type, content, artifacts_json, metadata_json, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Timestamp, m.From, m.To, string(m.Type), m.Content, string(artifacts), string(meta), nullTimePtr(m.ProcessedAt))
	if err != nil {
		return apmaserr.Storage(err, "append message %q", m.ID)
	}
	return nil
}

// MarkMessageProcessed stamps processed_at for a message by ID.
func (s *Store) MarkMessageProcessed(id string, processedAt time.Time) error {
	result, err := s.db.Exec(`UPDATE messages SET processed_at = ? WHERE id = ?`, processedAt, id)
	if err != nil {
		return apmaserr.Storage(err, "mark message %q processed", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apmaserr.Storage(err, "check rows affected for message %q", id)
	}
	if rows == 0 {
		return apmaserr.NotFound("message %q", id)
	}
	return nil
}

// ListMessagesForRole implements the store's getMessages(role, since, limit)
// contract (spec §4.1): messages where from == role or to == role (directly
// addressed or broadcast via RecipientAll), optionally bounded to those
// strictly after since, ordered newest-first, capped at limit (limit <= 0
// means unbounded). unprocessedOnly further restricts to messages with no
// processed_at.
func (s *Store) ListMessagesForRole(role string, since *time.Time, limit int, unprocessedOnly bool) ([]*types.AgentMessage, error) {
	query := `
		SELECT id, timestamp, from_role, to_role, type, content, artifacts_json, metadata_json, processed_at
		FROM messages
		WHERE (from_role = ? OR to_role = ? OR to_role = ?)
	`
	args := []interface{}{role, role, types.RecipientAll}
	if since != nil {
		query += ` AND timestamp > ?`
		args = append(args, *since)
	}
	if unprocessedOnly {
		query += ` AND processed_at IS NULL`
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apmaserr.Storage(err, "list messages for role %q", role)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListAllMessages returns every message in the log, oldest first. Used by
// the apmas://messages resource.
func (s *Store) ListAllMessages() ([]*types.AgentMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, from_role, to_role, type, content, artifacts_json, metadata_json, processed_at
		FROM messages ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, apmaserr.Storage(err, "list all messages")
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetMessage returns a single message by ID, or NotFound.
func (s *Store) GetMessage(id string) (*types.AgentMessage, error) {
	row := s.db.QueryRow(`
		SELECT id, timestamp, from_role, to_role, type, content, artifacts_json, metadata_json, processed_at
		FROM messages WHERE id = ?
	`, id)

	var m types.AgentMessage
	var msgType string
	var artifactsJSON, metaJSON string
	var processedAt sql.NullTime

	err := row.Scan(&m.ID, &m.Timestamp, &m.From, &m.To, &msgType, &m.Content, &artifactsJSON, &metaJSON, &processedAt)
	if err == sql.ErrNoRows {
		return nil, apmaserr.NotFound("message %q", id)
	}
	if err != nil {
		return nil, apmaserr.Storage(err, "load message %q", id)
	}
	m.Type = types.MessageType(msgType)
	m.ProcessedAt = timePtrFromNull(processedAt)
	unmarshalStringList(artifactsJSON, &m.Artifacts)
	unmarshalJSONMap(metaJSON, &m.Metadata)
	return &m, nil
}

// ListUnprocessedByType returns unprocessed messages of the given type,
// oldest first — used by the review-feedback scan (spec §4.4 step 4).
func (s *Store) ListUnprocessedByType(msgType types.MessageType) ([]*types.AgentMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, from_role, to_role, type, content, artifacts_json, metadata_json, processed_at
		FROM messages
		WHERE type = ? AND processed_at IS NULL
		ORDER BY timestamp ASC
	`, string(msgType))
	if err != nil {
		return nil, apmaserr.Storage(err, "list unprocessed messages of type %q", msgType)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*types.AgentMessage, error) {
	var out []*types.AgentMessage
	for rows.Next() {
		var m types.AgentMessage
		var msgType string
		var artifactsJSON, metaJSON string
		var processedAt sql.NullTime

		if err := rows.Scan(&m.ID, &m.Timestamp, &m.From, &m.To, &msgType, &m.Content, &artifactsJSON, &metaJSON, &processedAt); err != nil {
			return nil, apmaserr.Storage(err, "scan message")
		}
		m.Type = types.MessageType(msgType)
		m.ProcessedAt = timePtrFromNull(processedAt)
		unmarshalStringList(artifactsJSON, &m.Artifacts)
		unmarshalJSONMap(metaJSON, &m.Metadata)
		out = append(out, &m)
	}
	return out, rows.Err()
}
