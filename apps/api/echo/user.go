package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/user"
	identitysvc "github.com/tahfeezapp/tahfeez/services/identity"
)

type authApi struct {
	store    *auth.Store
	provider *identitysvc.Provider
	users    user.Repository
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		store:    deps.AuthStore,
		provider: deps.Provider,
		users:    deps.Users,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.GET("/confirm-email", api.confirmEmail)

	// authed endpoints
	ag.POST("/logout", api.logout, authed)
	ag.GET("/me", api.me, authed)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err := api.store.SignUp(reqCtx, data.Email, data.Password, data.Role); err != nil {
		var appErr *auth.Error
		if errors.As(err, &appErr) && appErr.Code == auth.CodeConfirmationPending {
			return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: appErr.Message})
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, api.authResponse(ctx))
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.store.SignIn(ctx.Request().Context(), data.Email, data.Password); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.authResponse(ctx))
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.store.SignOut(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) confirmEmail(ctx echo.Context) error {
	var data ConfirmEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmEmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.provider.ConfirmEmail(ctx.Request().Context(), data.UID, data.Token); err != nil {
		return auth.NewError(auth.CodeValidationFailure, auth.MsgSignUpFailed, err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "email confirmed"})
}

func (api *authApi) me(ctx echo.Context) error {
	ident := contextIdentity(ctx)
	actor := contextActor(ctx)
	return ctx.JSON(http.StatusOK, AuthResponse{
		Identity: &ident,
		Role:     actor.Role,
	})
}

// authResponse snapshots the auth store state plus the session token.
func (api *authApi) authResponse(ctx echo.Context) AuthResponse {
	state := api.store.State()
	res := AuthResponse{Identity: state.Identity, Role: state.Role}
	if sess, err := api.provider.GetSession(ctx.Request().Context()); err == nil && sess != nil {
		res.Token = sess.Token
	}
	return res
}

type (
	SignupRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"required,role"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	ConfirmEmailRequest struct {
		UID   string `json:"uid" query:"uid" validate:"required"`
		Token string `json:"token" query:"token" validate:"required"`
	}

	AuthResponse struct {
		Identity *auth.Identity `json:"identity"`
		Role     string         `json:"role,omitempty"`
		Token    string         `json:"token,omitempty"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (sr *SignupRequest) Validate(validate *validator.Validate) error {
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	sr.Role = core.CleanString(sr.Role, true /* lower */)
	return validate.Struct(sr)
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (cr *ConfirmEmailRequest) Validate(validate *validator.Validate) error {
	cr.UID = core.CleanString(cr.UID)
	cr.Token = core.CleanString(cr.Token)
	return validate.Struct(cr)
}
