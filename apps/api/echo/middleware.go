package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
)

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsAdmin() {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// actorMiddleware attaches the request id to the request context. The JWT gate completes
// the actor with the account once the token is verified.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		setContextActor(ctx)
		return next(ctx)
	}
}

func setContextActor(ctx echo.Context) {
	actor := core.Actor{RequestID: ctx.Response().Header().Get(echo.HeaderXRequestID)}
	if claims, err := getContextClaims(ctx); err == nil {
		actor.AccountID = claims.Subject
		actor.Email = claims.Email
		actor.Role = claims.Role
	}
	req := ctx.Request()
	ctx.SetRequest(req.WithContext(core.WithActor(req.Context(), actor)))
}
