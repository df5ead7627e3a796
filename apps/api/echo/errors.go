package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// domain errors answered as-is
	clientErrors = map[error]int{
		user.ErrNotFound:              http.StatusNotFound,
		student.ErrNotFound:           http.StatusNotFound,
		attendance.ErrNotFound:        http.StatusNotFound,
		student.ErrUnsupportedFormat:  http.StatusBadRequest,
		student.ErrEmptyFile:          http.StatusBadRequest,
		attendance.ErrAlreadyRecorded: http.StatusConflict,
	}
)

func clientErrorStatus(cause error) (int, bool) {
	for err, status := range clientErrors {
		if cause == err {
			return status, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if fldErrs, ok := core.FieldErrors(cause, translator); ok {
			code = http.StatusBadRequest
			message = fldErrs
			if vErr, isVErr := cause.(*core.ValidationError); isVErr && len(vErr.Fields) == 0 {
				message = vErr.Error()
			}
		} else if status, ok := clientErrorStatus(cause); ok {
			code = status
			message = cause.Error()
		} else if httpErr, ok := cause.(*echo.HTTPError); ok {
			if httpErr == middleware.ErrJWTMissing || httpErr.Message == middleware.ErrJWTMissing.Message {
				code = http.StatusUnauthorized
				message = httpErr.Message
			} else {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
				code = httpErr.Code
				message = httpErr.Message
			}
		} else { // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = null.NewString(claims.Username, claims.Username != "")
				usr.Email = null.NewString(claims.Email, claims.Email != "")
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
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
