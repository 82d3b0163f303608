package auth_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/user"
	emailsvc "github.com/tahfeezapp/tahfeez/services/email"
	identitysvc "github.com/tahfeezapp/tahfeez/services/identity"
	logsvc "github.com/tahfeezapp/tahfeez/services/logger"
	dummydb "github.com/tahfeezapp/tahfeez/storage/database/dummy"
	"github.com/tahfeezapp/tahfeez/storage/keyvalue"
)

type storeDeps struct {
	store    *auth.Store
	provider *identitysvc.Provider
	users    user.Repository
	pending  auth.PendingRoleStore
	conf     *core.Config
}

func setup(t *testing.T, requireConfirm bool) storeDeps {
	t.Helper()
	conf := &core.Config{
		AppName:                  "Tahfeez",
		SecretKey:                []byte("secret"),
		DefaultFromEmail:         "noreply@tahfeez.test",
		FrontendBaseURL:          "http://localhost:3000",
		RequireEmailConfirm:      requireConfirm,
		SessionExpirationDelta:   10 * time.Minute,
		EmailConfirmTimeoutDelta: 3 * 24 * time.Hour,
	}
	db, err := dummydb.Open()
	require.NoError(t, err)
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	provider := identitysvc.NewProvider(conf, dummydb.NewAccountRepository(db), emailsvc.NewConsoleServiceMock(conf), logger)
	users := dummydb.NewUserRepository(db)
	pending := keyvalue.NewInMemPendingRoleStore()
	return storeDeps{
		store:    auth.NewStore(provider, users, pending, logger),
		provider: provider,
		users:    users,
		pending:  pending,
		conf:     conf,
	}
}

func requireAuthErrorCode(t *testing.T, err error, code auth.ErrorCode) *auth.Error {
	t.Helper()
	var appErr *auth.Error
	require.True(t, errors.As(err, &appErr), "expected *auth.Error, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestStore_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("no existing session", func(t *testing.T) {
		deps := setup(t, false)
		assert.True(t, deps.store.State().Loading)

		deps.store.Initialize(ctx)

		state := deps.store.State()
		assert.False(t, state.Loading)
		assert.False(t, state.IsAuthenticated())
		assert.Empty(t, state.Role)
	})

	t.Run("existing session is resolved", func(t *testing.T) {
		deps := setup(t, false)
		_, sess, err := deps.provider.SignUp(ctx, "hafsa@test.test", "S3cret!pass")
		require.NoError(t, err)
		require.NotNil(t, sess)

		deps.store.Initialize(ctx)

		state := deps.store.State()
		assert.False(t, state.Loading)
		require.True(t, state.IsAuthenticated())
		assert.Equal(t, "hafsa@test.test", state.Identity.Email)
		assert.Equal(t, user.RoleStudent, state.Role) // provisioned default
	})

	t.Run("provider events re-run resolution", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)

		_, _, err := deps.provider.SignUp(ctx, "omar@test.test", "S3cret!pass")
		require.NoError(t, err)
		assert.True(t, deps.store.State().IsAuthenticated())

		require.NoError(t, deps.provider.SignOut(ctx))
		state := deps.store.State()
		assert.False(t, state.IsAuthenticated())
		assert.False(t, state.Loading)
	})
}

func TestStore_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher gets an immediate session and role record", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)

		require.NoError(t, deps.store.SignUp(ctx, "Ustadh@Test.Test", "S3cret!pass", user.RoleTeacher))

		state := deps.store.State()
		require.True(t, state.IsAuthenticated())
		assert.Equal(t, "ustadh@test.test", state.Identity.Email)
		assert.Equal(t, user.RoleTeacher, state.Role)

		usr, err := deps.users.GetUserByID(ctx, state.Identity.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, usr.Role)

		// staged role consumed
		role, err := deps.pending.Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, role)
	})

	t.Run("invalid role is rejected before any remote call", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)

		err := deps.store.SignUp(ctx, "imam@test.test", "S3cret!pass", "imam")
		requireAuthErrorCode(t, err, auth.CodeValidationFailure)
		assert.False(t, deps.store.State().IsAuthenticated())
	})

	t.Run("duplicate account", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)
		require.NoError(t, deps.store.SignUp(ctx, "zaid@test.test", "S3cret!pass", user.RoleStudent))
		require.NoError(t, deps.store.SignOut(ctx))

		err := deps.store.SignUp(ctx, "zaid@test.test", "0therS3cret!", user.RoleStudent)
		appErr := requireAuthErrorCode(t, err, auth.CodeDuplicateAccount)
		assert.Equal(t, auth.MsgDuplicateAccount, appErr.Message)
		assert.False(t, deps.store.State().IsAuthenticated())
	})

	t.Run("confirmation pending leaves the state signed out", func(t *testing.T) {
		deps := setup(t, true /* requireConfirm */)
		deps.store.Initialize(ctx)

		err := deps.store.SignUp(ctx, "bilal@test.test", "S3cret!pass", user.RoleTeacher)
		appErr := requireAuthErrorCode(t, err, auth.CodeConfirmationPending)
		assert.Equal(t, auth.MsgConfirmPending, appErr.Message)
		assert.False(t, deps.store.State().IsAuthenticated())

		// the staged role survives until the next successful resolution
		role, err := deps.pending.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, role)
	})
}

func TestStore_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)
		require.NoError(t, deps.store.SignUp(ctx, "sara@test.test", "S3cret!pass", user.RoleTeacher))
		require.NoError(t, deps.store.SignOut(ctx))

		require.NoError(t, deps.store.SignIn(ctx, "  Sara@Test.Test  ", "S3cret!pass"))

		state := deps.store.State()
		require.True(t, state.IsAuthenticated())
		assert.Equal(t, user.RoleTeacher, state.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)
		require.NoError(t, deps.store.SignUp(ctx, "nuh@test.test", "S3cret!pass", user.RoleStudent))
		require.NoError(t, deps.store.SignOut(ctx))

		err := deps.store.SignIn(ctx, "nuh@test.test", "nope nope")
		appErr := requireAuthErrorCode(t, err, auth.CodeInvalidCredentials)
		assert.Equal(t, auth.MsgInvalidCredentials, appErr.Message)
		assert.False(t, deps.store.State().IsAuthenticated())
	})

	t.Run("unknown account maps to invalid credentials", func(t *testing.T) {
		deps := setup(t, false)
		deps.store.Initialize(ctx)

		err := deps.store.SignIn(ctx, "ghost@test.test", "S3cret!pass")
		requireAuthErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("pending role is consumed on first resolution", func(t *testing.T) {
		deps := setup(t, true /* requireConfirm */)
		deps.store.Initialize(ctx)

		err := deps.store.SignUp(ctx, "yusuf@test.test", "S3cret!pass", user.RoleTeacher)
		requireAuthErrorCode(t, err, auth.CodeConfirmationPending)

		acct, err := deps.provider.Accounts().GetAccountByEmail(ctx, "yusuf@test.test")
		require.NoError(t, err)
		token, err := identitysvc.MakeToken(acct, deps.conf)
		require.NoError(t, err)
		require.NoError(t, deps.provider.ConfirmEmail(ctx, identitysvc.EncodeUID(acct), token))

		require.NoError(t, deps.store.SignIn(ctx, "yusuf@test.test", "S3cret!pass"))

		state := deps.store.State()
		require.True(t, state.IsAuthenticated())
		assert.Equal(t, user.RoleTeacher, state.Role)

		role, err := deps.pending.Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, role)
	})
}

func TestStore_SignOut(t *testing.T) {
	ctx := context.Background()
	deps := setup(t, false)
	deps.store.Initialize(ctx)
	require.NoError(t, deps.store.SignUp(ctx, "adam@test.test", "S3cret!pass", user.RoleStudent))
	require.True(t, deps.store.State().IsAuthenticated())

	require.NoError(t, deps.store.SignOut(ctx))

	state := deps.store.State()
	assert.False(t, state.IsAuthenticated())
	assert.Empty(t, state.Role)
	assert.False(t, state.Loading)

	sess, err := deps.provider.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}
