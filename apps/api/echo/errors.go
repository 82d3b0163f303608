package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/session"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, auth.MsgSignInRequired)
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, session.MsgPermissionDenied)
)

// statusForCode maps a classified store failure to an HTTP status.
func statusForCode(code auth.ErrorCode) int {
	switch code {
	case auth.CodeInvalidCredentials,
		auth.CodeDuplicateAccount,
		auth.CodeWeakPassword,
		auth.CodeMalformedEmail,
		auth.CodeValidationFailure:
		return http.StatusBadRequest
	case auth.CodeUnconfirmedEmail, auth.CodePermissionDenied:
		return http.StatusForbidden
	case auth.CodeNotFound:
		return http.StatusNotFound
	case auth.CodeConfirmationPending:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var appErr *auth.Error
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if errors.As(err, &appErr) {
				code = statusForCode(appErr.Code)
				message = appErr.Message
				if code == http.StatusInternalServerError {
					logger.Error(appErr.Message, err, contextIdentity(ctx))
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), contextIdentity(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && appErr == nil {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
