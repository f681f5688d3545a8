package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, resp := renderError(err, translator)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(http.StatusInternalServerError)
			logger.Error(msg, errors.Wrap(err, msg), core.ActorFrom(ctx.Request().Context()))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				resp.Error = fmt.Sprintf("%+v", err)
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// renderError maps err to a status code and a body. Server errors carry no detail.
func renderError(err error, translator ut.Translator) (int, ErrorResponse) {
	var batchErr *core.BatchError
	if errors.As(err, &batchErr) {
		code, resp := renderError(batchErr.Err, translator)
		resp.Message = fmt.Sprintf("record %d: %s", batchErr.Index, resp.Message)
		if fields, ok := resp.Error.(map[string]string); ok {
			indexed := make(map[string]string, len(fields))
			for k, v := range fields {
				indexed[fmt.Sprintf("[%d].%s", batchErr.Index, k)] = v
			}
			resp.Error = indexed
		}
		return code, resp
	}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, ErrorResponse{Message: fmt.Sprint(origErr.Message)}
		}
		if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
			origErr = herr
		}
		return origErr.Code, ErrorResponse{Message: fmt.Sprint(origErr.Message)}

	case validator.ValidationErrors:
		return http.StatusBadRequest, ErrorResponse{
			Message: "invalid data",
			Error:   core.TranslateValidationErrors(origErr, translator),
		}

	case *core.ValidationError:
		resp := ErrorResponse{Message: origErr.Error()}
		if len(origErr.Fields) > 0 {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			resp.Error = fldErrs
		}
		return http.StatusBadRequest, resp

	case *core.DuplicateError:
		return http.StatusBadRequest, ErrorResponse{
			Message: origErr.Error(),
			Error:   map[string]string{origErr.Field: "already exists"},
		}

	case *core.NotFoundError:
		return http.StatusNotFound, ErrorResponse{Message: origErr.Error()}
	}

	if core.IsNotFound(err) {
		return http.StatusNotFound, ErrorResponse{Message: "not found"}
	}
	return http.StatusInternalServerError, ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}
}
