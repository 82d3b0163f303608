package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/user"
)

// State is a snapshot of the authenticated identity and its resolved role.
type State struct {
	Identity *Identity `json:"identity"`
	Role     string    `json:"role,omitempty"`
	Loading  bool      `json:"loading"`
}

func (s State) IsAuthenticated() bool { return s.Identity != nil }

// Store reconciles the IdentityProvider's session with the role record in
// the users table, lazily provisioning a default record when absent.
// It is an application-scoped singleton; all state access goes through
// State() snapshots.
type Store struct {
	provider IdentityProvider
	users    user.Repository
	pending  PendingRoleStore
	logger   core.Logger

	mu    sync.RWMutex
	state State
}

func NewStore(provider IdentityProvider, users user.Repository, pending PendingRoleStore, logger core.Logger) *Store {
	return &Store{
		provider: provider,
		users:    users,
		pending:  pending,
		logger:   logger,
		state:    State{Loading: true},
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) set(ident *Identity, role string) {
	s.mu.Lock()
	s.state = State{Identity: ident, Role: role, Loading: false}
	s.mu.Unlock()
}

// Initialize resolves any existing provider session and subscribes to auth
// state changes, re-running role resolution on every event. It fails open
// to the signed-out state; Loading is never left stuck.
func (s *Store) Initialize(ctx context.Context) {
	sess, err := s.provider.GetSession(ctx)
	switch {
	case err != nil:
		s.logger.Error("auth: resolving existing session", err)
		s.set(nil, "")
	case sess == nil:
		s.set(nil, "")
	default:
		role, err := s.resolveRole(ctx, sess.Identity)
		if err != nil {
			s.logger.Error("auth: resolving role", err)
			s.set(nil, "")
		} else {
			ident := sess.Identity
			s.set(&ident, role)
		}
	}

	s.provider.OnAuthStateChange(func(event Event, sess *Session) {
		if sess == nil {
			s.set(nil, "")
			return
		}
		role, err := s.resolveRole(context.Background(), sess.Identity)
		if err != nil {
			s.logger.Error("auth: resolving role on "+string(event), err)
			s.set(nil, "")
			return
		}
		ident := sess.Identity
		s.set(&ident, role)
	})
}

// SignIn delegates the credential check to the provider, then resolves or
// provisions the role record. State is only mutated on success.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	email = core.CleanString(email, true /* lower */)

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Classify(err, MsgSignInFailed)
	}

	role, err := s.resolveRole(ctx, sess.Identity)
	if err != nil {
		return NewError(CodeTransportFailure, MsgSignInFailed, err)
	}

	ident := sess.Identity
	s.set(&ident, role)
	return nil
}

// SignUp stages the requested role, delegates account creation and, when a
// session is granted immediately, inserts the role record and signs the
// state in. When confirmation is pending it returns an informational
// CodeConfirmationPending error and leaves the state signed out; the staged
// role survives until the next successful resolution consumes it.
func (s *Store) SignUp(ctx context.Context, email, password, role string) error {
	email = core.CleanString(email, true /* lower */)
	if !user.IsValidRole(role) {
		return NewError(CodeValidationFailure, MsgSignUpFailed, errors.Errorf("invalid role %q", role))
	}

	if err := s.pending.Set(ctx, role); err != nil {
		// not fatal: sign-up proceeds, the default role applies on resolution
		s.logger.Warn("auth: staging pending role", err)
	}

	ident, sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return Classify(err, MsgSignUpFailed)
	}

	if sess == nil {
		return NewError(CodeConfirmationPending, MsgConfirmPending, nil)
	}

	now := time.Now().UTC()
	if _, err = s.users.CreateUser(ctx, user.User{ID: ident.ID, Email: ident.Email, Role: role, CreatedAt: now}); err != nil {
		// the change callback may have provisioned the record already
		if errors.Cause(err) != user.ErrExists {
			return NewError(CodeTransportFailure, MsgSignUpFailed, errors.Wrap(err, "inserting role record"))
		}
	}
	if err = s.pending.Clear(ctx); err != nil {
		s.logger.Warn("auth: clearing pending role", err)
	}

	s.set(&ident, role)
	return nil
}

// SignOut delegates to the provider then unconditionally clears the state.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Error("auth: signing out", err)
	}
	s.set(nil, "")
	return err
}

// resolveRole fetches the role record for an identity, provisioning one on
// first resolution: the staged pending role when present, student otherwise.
func (s *Store) resolveRole(ctx context.Context, ident Identity) (string, error) {
	usr, err := s.users.GetUserByID(ctx, ident.ID)
	if err == nil {
		return usr.Role, nil
	}
	if err != user.ErrNotFound {
		return "", errors.Wrap(err, "fetching role record")
	}

	role, err := s.pending.Get(ctx)
	if err != nil {
		s.logger.Warn("auth: reading pending role", err)
		role = ""
	}
	if !user.IsValidRole(role) {
		role = user.RoleStudent
	}

	usr, err = s.users.CreateUser(ctx, user.User{
		ID:        ident.ID,
		Email:     ident.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
	if err == user.ErrExists {
		// provisioned concurrently; the existing record wins
		if usr, err = s.users.GetUserByID(ctx, ident.ID); err != nil {
			return "", errors.Wrap(err, "re-fetching role record")
		}
	} else if err != nil {
		return "", errors.Wrap(err, "provisioning role record")
	}

	if err = s.pending.Clear(ctx); err != nil {
		s.logger.Warn("auth: clearing pending role", err)
	}
	return usr.Role, nil
}
