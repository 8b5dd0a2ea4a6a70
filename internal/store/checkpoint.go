package store

import (
	"database/sql"
	"encoding/json"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// AppendCheckpoint inserts a new checkpoint row for a role. Checkpoints are
// append-only; recovery always reads the most recent one per role.
func (s *Store) AppendCheckpoint(c *types.Checkpoint) error {
	completed, err := json.Marshal(c.CompletedItems)
	if err != nil {
		return apmaserr.Storage(err, "marshal checkpoint completed items")
	}
	pending, err := json.Marshal(c.PendingItems)
	if err != nil {
		return apmaserr.Storage(err, "marshal checkpoint pending items")
	}
	files, err := json.Marshal(c.ActiveFiles)
	if err != nil {
		return apmaserr.Storage(err, "marshal checkpoint active files")
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints (
			agent_role, created_at, summary, completed_task_count, total_task_count,
			completed_items_json, pending_items_json, active_files_json, notes,
			estimated_context_usage
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Role, c.CreatedAt, c.Summary, c.CompletedTaskCount, c.TotalTaskCount,
		string(completed), string(pending), string(files), c.Notes, c.EstimatedContextUsage)
	if err != nil {
		return apmaserr.Storage(err, "append checkpoint for role %q", c.Role)
	}
	return nil
}

// LatestCheckpoint returns the most recent checkpoint for role, or a
// NotFound error if the role has never checkpointed.
func (s *Store) LatestCheckpoint(role string) (*types.Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT agent_role, created_at, summary, completed_task_count, total_task_count,
		       completed_items_json, pending_items_json, active_files_json, notes,
		       estimated_context_usage
		FROM checkpoints WHERE agent_role = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, role)

	c, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, apmaserr.NotFound("checkpoint for role %q", role)
	}
	if err != nil {
		return nil, apmaserr.Storage(err, "load latest checkpoint for role %q", role)
	}
	return c, nil
}

// ListCheckpoints returns every checkpoint for role, oldest first.
func (s *Store) ListCheckpoints(role string) ([]*types.Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT agent_role, created_at, summary, completed_task_count, total_task_count,
		       completed_items_json, pending_items_json, active_files_json, notes,
		       estimated_context_usage
		FROM checkpoints WHERE agent_role = ?
		ORDER BY created_at ASC, id ASC
	`, role)
	if err != nil {
		return nil, apmaserr.Storage(err, "list checkpoints for role %q", role)
	}
	defer rows.Close()

	var out []*types.Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, apmaserr.Storage(err, "scan checkpoint")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCheckpoint(r rowScanner) (*types.Checkpoint, error) {
	var c types.Checkpoint
	var completedJSON, pendingJSON, filesJSON string

	err := r.Scan(
		&c.Role, &c.CreatedAt, &c.Summary, &c.CompletedTaskCount, &c.TotalTaskCount,
		&completedJSON, &pendingJSON, &filesJSON, &c.Notes, &c.EstimatedContextUsage,
	)
	if err != nil {
		return nil, err
	}
	unmarshalStringList(completedJSON, &c.CompletedItems)
	unmarshalStringList(pendingJSON, &c.PendingItems)
	unmarshalStringList(filesJSON, &c.ActiveFiles)
	return &c, nil
}
