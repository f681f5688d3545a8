package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-createdAt`. Unknown attribute names are rejected.
func (ord *Ordering) Bind(ctx echo.Context) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		o := core.DBOrdering{Field: field, Ascending: !descending}
		if !o.Valid() {
			return core.NewFieldError(orderingParam, "invalid ordering field "+field)
		}
		ord.Orderings = append(ord.Orderings, o)
	}
	return nil
}

// bindFilter builds an equality filter from the allowed query parameters.
func bindFilter(ctx echo.Context, allowed []string) core.Filter {
	filter := core.Filter{}
	for _, key := range allowed {
		if val := ctx.QueryParam(key); val != "" {
			filter[key] = val
		}
	}
	return filter
}

// bindPatch decodes the request body into a core.Patch.
func bindPatch(ctx echo.Context) (core.Patch, error) {
	p := core.Patch{}
	if ctx.Request().ContentLength == 0 {
		return p, nil
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&p); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON object").SetInternal(errors.Wrap(err, "decoding patch"))
	}
	return p, nil
}

// bindJSON decodes the request body into dst, ignoring path and query parameters.
func bindJSON(ctx echo.Context, dst interface{}) error {
	if err := json.NewDecoder(ctx.Request().Body).Decode(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func deleted(ctx echo.Context, resource string) error {
	return ctx.JSON(http.StatusOK, MessageResponse{Message: resource + " deleted"})
}
