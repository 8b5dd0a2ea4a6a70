package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// SaveAgentState upserts a single role's row, matching the teacher's
// agent_control upsert idiom (ON CONFLICT DO UPDATE on every mutable column).
func (s *Store) SaveAgentState(a *types.AgentState) error {
	artifacts, err := json.Marshal(a.Artifacts)
	if err != nil {
		return apmaserr.Storage(err, "marshal artifacts for role %q", a.Role)
	}
	deps, err := json.Marshal(a.Dependencies)
	if err != nil {
		return apmaserr.Storage(err, "marshal dependencies for role %q", a.Role)
	}

	_, err = s.db.Exec(`
		INSERT INTO agent_states (
			role, status, subagent_type, spawned_at, completed_at, timeout_at,
			last_heartbeat, task_id, process_id, retry_count, review_iteration_count,
			artifacts_json, dependencies_json, last_progress_message, last_error,
			estimated_context_usage, recovery_context
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET
			status = excluded.status,
			subagent_type = excluded.subagent_type,
			spawned_at = excluded.spawned_at,
			completed_at = excluded.completed_at,
			timeout_at = excluded.timeout_at,
			last_heartbeat = excluded.last_heartbeat,
			task_id = excluded.task_id,
			process_id = excluded.process_id,
			retry_count = excluded.retry_count,
			review_iteration_count = excluded.review_iteration_count,
			artifacts_json = excluded.artifacts_json,
			dependencies_json = excluded.dependencies_json,
			last_progress_message = excluded.last_progress_message,
			last_error = excluded.last_error,
			estimated_context_usage = excluded.estimated_context_usage,
			recovery_context = excluded.recovery_context
	`,
		a.Role, string(a.Status), a.SubagentType, nullTimePtr(a.SpawnedAt), nullTimePtr(a.CompletedAt),
		nullTimePtr(a.TimeoutAt), nullTimePtr(a.LastHeartbeat), nullString(a.TaskID), a.ProcessID,
		a.RetryCount, a.ReviewIterationCount, string(artifacts), string(deps),
		nullString(a.LastProgressMessage), nullString(a.LastError), a.EstimatedContextUsage,
		nullString(a.RecoveryContext),
	)
	if err != nil {
		return apmaserr.Storage(err, "save agent state for role %q", a.Role)
	}
	return nil
}

// GetAgentState returns a NotFound error if role has never been saved.
func (s *Store) GetAgentState(role string) (*types.AgentState, error) {
	row := s.db.QueryRow(`
		SELECT role, status, subagent_type, spawned_at, completed_at, timeout_at,
		       last_heartbeat, task_id, process_id, retry_count, review_iteration_count,
		       artifacts_json, dependencies_json, last_progress_message, last_error,
		       estimated_context_usage, recovery_context
		FROM agent_states WHERE role = ?
	`, role)
	a, err := scanAgentState(row)
	if err == sql.ErrNoRows {
		return nil, apmaserr.NotFound("agent role %q", role)
	}
	if err != nil {
		return nil, apmaserr.Storage(err, "load agent state for role %q", role)
	}
	return a, nil
}

// ListAgentStates returns every tracked role, ordered by role name.
func (s *Store) ListAgentStates() ([]*types.AgentState, error) {
	rows, err := s.db.Query(`
		SELECT role, status, subagent_type, spawned_at, completed_at, timeout_at,
		       last_heartbeat, task_id, process_id, retry_count, review_iteration_count,
		       artifacts_json, dependencies_json, last_progress_message, last_error,
		       estimated_context_usage, recovery_context
		FROM agent_states ORDER BY role
	`)
	if err != nil {
		return nil, apmaserr.Storage(err, "list agent states")
	}
	defer rows.Close()

	var out []*types.AgentState
	for rows.Next() {
		a, err := scanAgentState(rows)
		if err != nil {
			return nil, apmaserr.Storage(err, "scan agent state")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListStaleAgents returns non-terminal agents whose last heartbeat is older
// than threshold, mirroring the teacher's GetStaleAgents query.
func (s *Store) ListStaleAgents(threshold time.Duration, now time.Time) ([]*types.AgentState, error) {
	cutoff := now.Add(-threshold)
	rows, err := s.db.Query(`
		SELECT role, status, subagent_type, spawned_at, completed_at, timeout_at,
		       last_heartbeat, task_id, process_id, retry_count, review_iteration_count,
		       artifacts_json, dependencies_json, last_progress_message, last_error,
		       estimated_context_usage, recovery_context
		FROM agent_states
		WHERE status IN ('running', 'spawning')
		  AND last_heartbeat IS NOT NULL
		  AND last_heartbeat < ?
		ORDER BY last_heartbeat ASC
	`, cutoff)
	if err != nil {
		return nil, apmaserr.Storage(err, "query stale agents")
	}
	defer rows.Close()

	var out []*types.AgentState
	for rows.Next() {
		a, err := scanAgentState(rows)
		if err != nil {
			return nil, apmaserr.Storage(err, "scan stale agent")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgentState(r rowScanner) (*types.AgentState, error) {
	var a types.AgentState
	var status string
	var spawnedAt, completedAt, timeoutAt, lastHeartbeat sql.NullTime
	var taskID, lastProgress, lastError, recoveryContext sql.NullString
	var artifactsJSON, depsJSON string

	err := r.Scan(
		&a.Role, &status, &a.SubagentType, &spawnedAt, &completedAt, &timeoutAt,
		&lastHeartbeat, &taskID, &a.ProcessID, &a.RetryCount, &a.ReviewIterationCount,
		&artifactsJSON, &depsJSON, &lastProgress, &lastError,
		&a.EstimatedContextUsage, &recoveryContext,
	)
	if err != nil {
		return nil, err
	}

	a.Status = types.AgentStatus(status)
	a.SpawnedAt = timePtrFromNull(spawnedAt)
	a.CompletedAt = timePtrFromNull(completedAt)
	a.TimeoutAt = timePtrFromNull(timeoutAt)
	a.LastHeartbeat = timePtrFromNull(lastHeartbeat)
	a.TaskID = taskID.String
	a.LastProgressMessage = lastProgress.String
	a.LastError = lastError.String
	a.RecoveryContext = recoveryContext.String

	unmarshalStringList(artifactsJSON, &a.Artifacts)
	unmarshalStringList(depsJSON, &a.Dependencies)
	return &a, nil
}
