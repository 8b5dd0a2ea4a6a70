package tools

import "context"

// callerRoleKey is how the JSON-RPC Host threads "which agent connection
// is this call coming from" down to tool handlers. Each spawned agent
// process gets its own stdio pair and therefore its own Host.Serve call;
// the caller binds the role into that call's context once, here, rather
// than every tool (like send-message) having to take a redundant "from"
// parameter the agent could lie about.
type callerRoleKey struct{}

// WithCallerRole returns a context carrying role as the identity of the
// agent connection the current Host.Serve loop is bound to.
func WithCallerRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, callerRoleKey{}, role)
}

// CallerRoleFromContext retrieves the role bound by WithCallerRole.
func CallerRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(callerRoleKey{}).(string)
	return role, ok
}
