// Package checkpoint persists per-agent progress snapshots and synthesizes
// the resumption context block from the latest one (spec §4.5). The
// supervisor puts that block into escalation notifications; it is not
// copied into AgentState.RecoveryContext on requeue.
package checkpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

type checkpointStore interface {
	AppendCheckpoint(c *types.Checkpoint) error
	LatestCheckpoint(role string) (*types.Checkpoint, error)
	ListCheckpoints(role string) ([]*types.Checkpoint, error)
}

// Recorder implements the Checkpoint/Recovery component.
type Recorder struct {
	store checkpointStore
	now   func() time.Time
}

// New constructs a Recorder over the given store.
func New(store checkpointStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Save validates and stamps role (overriding any client-supplied
// role-mismatch) and appends the checkpoint.
func (r *Recorder) Save(role string, c *types.Checkpoint) error {
	c.Role = role
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.TotalTaskCount < 0 || c.CompletedTaskCount < 0 || c.CompletedTaskCount > c.TotalTaskCount {
		return apmaserr.Validation("role %q: completedTaskCount %d must be between 0 and totalTaskCount %d",
			role, c.CompletedTaskCount, c.TotalTaskCount)
	}
	return r.store.AppendCheckpoint(c)
}

// Latest returns the newest checkpoint for role, or NotFound if there is
// none yet.
func (r *Recorder) Latest(role string) (*types.Checkpoint, error) {
	return r.store.LatestCheckpoint(role)
}

// History returns every checkpoint for role, oldest first.
func (r *Recorder) History(role string) ([]*types.Checkpoint, error) {
	return r.store.ListCheckpoints(role)
}

// ResumptionContext renders the latest checkpoint (if any) as a
// human-readable Markdown block.
func (r *Recorder) ResumptionContext(role string) (string, error) {
	c, err := r.store.LatestCheckpoint(role)
	if apmaserr.Is(err, apmaserr.KindNotFound) {
		return renderResumptionContext(nil), nil
	}
	if err != nil {
		return "", err
	}
	return renderResumptionContext(c), nil
}

func renderResumptionContext(c *types.Checkpoint) string {
	var b strings.Builder
	b.WriteString("## Resumption Context\n\n")

	if c == nil {
		b.WriteString("No prior checkpoint.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Last updated: %s\n\n", c.CreatedAt.UTC().Format(time.RFC3339))

	summary := c.Summary
	if summary == "" {
		summary = "None"
	}
	fmt.Fprintf(&b, "Summary: %s\n\n", summary)

	fmt.Fprintf(&b, "Progress: %d/%d (%d%%) complete\n\n", c.CompletedTaskCount, c.TotalTaskCount, c.PercentComplete())

	b.WriteString("Completed items:\n")
	writeBulletsOrNone(&b, c.CompletedItems)
	b.WriteString("\n")

	b.WriteString("Pending items:\n")
	writeBulletsOrNone(&b, c.PendingItems)
	b.WriteString("\n")

	b.WriteString("Active files:\n")
	if len(c.ActiveFiles) == 0 {
		b.WriteString("None\n")
	} else {
		b.WriteString("```\n")
		for _, f := range c.ActiveFiles {
			fmt.Fprintf(&b, "%s\n", f)
		}
		b.WriteString("```\n")
	}
	b.WriteString("\n")

	notes := c.Notes
	if notes == "" {
		notes = "No additional notes."
	}
	fmt.Fprintf(&b, "Notes: %s\n\n", notes)

	b.WriteString("Continue from this checkpoint.\n")
	return b.String()
}

func writeBulletsOrNone(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("None\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
