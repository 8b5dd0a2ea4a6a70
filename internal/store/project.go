package store

import (
	"database/sql"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// SaveProjectState upserts the single project_states row (id=1 always).
func (s *Store) SaveProjectState(p *types.ProjectState) error {
	_, err := s.db.Exec(`
		INSERT INTO project_states (id, name, working_dir, phase, started_at, completed_at, brief)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			working_dir = excluded.working_dir,
			phase = excluded.phase,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			brief = excluded.brief
	`, p.Name, p.WorkingDir, string(p.Phase), p.StartedAt, nullTimePtr(p.CompletedAt), nullString(p.Brief))
	if err != nil {
		return apmaserr.Storage(err, "save project state")
	}
	return nil
}

// GetProjectState returns the project state, or a NotFound error if the
// project hasn't been initialized yet.
func (s *Store) GetProjectState() (*types.ProjectState, error) {
	var p types.ProjectState
	var phase string
	var completedAt sql.NullTime
	var brief sql.NullString

	err := s.db.QueryRow(`
		SELECT name, working_dir, phase, started_at, completed_at, brief
		FROM project_states WHERE id = 1
	`).Scan(&p.Name, &p.WorkingDir, &phase, &p.StartedAt, &completedAt, &brief)

	if err == sql.ErrNoRows {
		return nil, apmaserr.NotFound("project state has not been initialized")
	}
	if err != nil {
		return nil, apmaserr.Storage(err, "load project state")
	}

	p.Phase = types.ProjectPhase(phase)
	p.CompletedAt = timePtrFromNull(completedAt)
	p.Brief = brief.String
	return &p, nil
}
