package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domain error -> HTTP status. Policy refusals are conflicts or forbidden,
// never 500s; a failed store write after a computed result is unavailability.
var domainErrStatus = map[error]int{
	user.ErrNotFound:             http.StatusNotFound,
	assessment.ErrNotFound:       http.StatusNotFound,
	attempt.ErrSessionNotFound:   http.StatusNotFound,
	attempt.ErrAttemptNotFound:   http.StatusNotFound,
	attempt.ErrConsentRequired:   http.StatusForbidden,
	attempt.ErrAlreadyAttempted:  http.StatusConflict,
	attempt.ErrNotPublished:      http.StatusConflict,
	attempt.ErrNotInProgress:     http.StatusConflict,
	attempt.ErrNotStarted:        http.StatusConflict,
	attempt.ErrAlreadyStarted:    http.StatusConflict,
	assessment.ErrNotPublished:   http.StatusConflict,
	assessment.ErrPublished:      http.StatusConflict,
	attempt.ErrUnknownQuestion:   http.StatusBadRequest,
	attempt.ErrIndexOutOfRange:   http.StatusBadRequest,
	attempt.ErrUnknownSignal:     http.StatusBadRequest,
	attempt.ErrPersistenceFailed: http.StatusServiceUnavailable,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := domainErrStatus[cause]; ok {
			code = status
			message = cause.Error()
			sendErrorResponse(ctx, code, message, err)
			return
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
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
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
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
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		sendErrorResponse(ctx, code, message, err)
	}
}

func sendErrorResponse(ctx echo.Context, code int, message interface{}, err error) {
	if ctx.Echo().Debug {
		message = err.Error()
	} else if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

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
