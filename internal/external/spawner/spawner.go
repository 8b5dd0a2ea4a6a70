// Package spawner implements the external Spawner collaborator (spec §6)
// by launching an agent as a plain OS process: a command template with
// {{role}} substituted, the recovery context handed to the child on
// stdin, and the process's PID returned so the supervisor can track it.
package spawner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/supervisor"
)

// ProcessSpawner launches one OS process per agent role. Command is a
// template in which every "{{role}}" is replaced with the agent's role
// and every "{{subagentType}}" with its subagent type; e.g.
// "claude --role {{role}} --subagent-type {{subagentType}}".
//
// Each child is told where to dial back for its JSON-RPC connection via
// APMAS_SOCKET, the path of the per-role Unix socket cmd/apmas listens on
// (socketDir/{role}.sock) — the stdin/stdout pair spec §4.6 describes is
// per agent connection, not the spawner's own child-process stdio, which
// stays free to carry the one-shot recovery context.
type ProcessSpawner struct {
	command   string
	args      []string
	socketDir string
	mu        sync.Mutex
	running   map[string]*exec.Cmd
}

// New constructs a ProcessSpawner that runs command with args for every
// spawn, substituting "{{role}}" and "{{subagentType}}" placeholders.
// socketDir is where cmd/apmas listens for each role's RPC connection.
func New(command string, args []string, socketDir string) *ProcessSpawner {
	return &ProcessSpawner{command: command, args: args, socketDir: socketDir, running: make(map[string]*exec.Cmd)}
}

// SocketPath returns the Unix socket path cmd/apmas should listen on for
// role's RPC connection.
func (p *ProcessSpawner) SocketPath(role string) string {
	return filepath.Join(p.socketDir, role+".sock")
}

func substitute(template, role, subagentType string) string {
	s := strings.ReplaceAll(template, "{{role}}", role)
	s = strings.ReplaceAll(s, "{{subagentType}}", subagentType)
	return s
}

// Spawn implements supervisor.Spawner. The recovery context (if any) is
// written to the child's stdin; the child process is responsible for
// reading it before starting its own work loop.
func (p *ProcessSpawner) Spawn(ctx context.Context, role, subagentType, recoveryContext string) (supervisor.SpawnResult, error) {
	args := make([]string, len(p.args))
	for i, a := range p.args {
		args[i] = substitute(a, role, subagentType)
	}

	cmd := exec.CommandContext(ctx, substitute(p.command, role, subagentType), args...)
	if recoveryContext != "" {
		cmd.Stdin = bytes.NewBufferString(recoveryContext)
	}
	cmd.Env = append(os.Environ(),
		"APMAS_ROLE="+role,
		"APMAS_SUBAGENT_TYPE="+subagentType,
		"APMAS_SOCKET="+p.SocketPath(role),
	)

	if err := cmd.Start(); err != nil {
		return supervisor.SpawnResult{ErrorMessage: fmt.Sprintf("start process for role %q: %v", role, err)}, nil
	}

	p.mu.Lock()
	p.running[role] = cmd
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		delete(p.running, role)
		p.mu.Unlock()
	}()

	return supervisor.SpawnResult{
		TaskID:    uuid.NewString(),
		ProcessID: cmd.Process.Pid,
		Success:   true,
	}, nil
}

// IsRunning reports whether role's process is still tracked as running.
func (p *ProcessSpawner) IsRunning(role string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[role]
	return ok
}

// Stop terminates role's process, if tracked.
func (p *ProcessSpawner) Stop(role string) error {
	p.mu.Lock()
	cmd, ok := p.running[role]
	p.mu.Unlock()
	if !ok {
		return apmaserr.NotFound("no running process tracked for role %q", role)
	}
	if cmd.Process == nil {
		return apmaserr.InvalidState("process for role %q has no PID", role)
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill process for role %q: %w", role, err)
	}
	return nil
}
