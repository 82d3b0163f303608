package auth

import "context"

// PendingRoleStore persists the role requested at sign-up until the next
// successful role resolution consumes it. It has a single transient key and
// must survive a restart when email confirmation bridges a redirect.
type PendingRoleStore interface {
	Set(ctx context.Context, role string) error
	// Get returns the staged role, or "" when nothing is staged.
	Get(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
