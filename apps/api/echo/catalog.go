package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core/catalog"
)

func (s *Server) registerCatalogs(g *echo.Group) {
	c := s.svcs.Catalogs
	registerCatalog(s, g, "/provinces", c.Provinces, false)
	registerCatalog(s, g, "/directions", c.Directions, false)
	registerCatalog(s, g, "/sous-directions", c.SousDirections, false)
	registerCatalog(s, g, "/services", c.Services, false)
	registerCatalog(s, g, "/disciplines", c.Disciplines, false)
	registerCatalog(s, g, "/denominations", c.Denominations, false)
	registerCatalog(s, g, "/etablissements", c.Etablissements, false)
	registerCatalog(s, g, "/equipements", c.Equipements, false)
	registerCatalog(s, g, "/infrastructures", c.Infrastructures, false)
	registerCatalog(s, g, "/partenaires", c.Partenaires, true)
	registerCatalog(s, g, "/permissions", c.Permissions, false)
	registerCatalog(s, g, "/presences", c.Presences, false)
}

type catalogAPI[T any] struct {
	svc *catalog.Service[T]
}

// registerCatalog mounts the CRUD routes of one catalog on path.
// Public catalogs skip the JWT gate, the others need an admin to delete.
func registerCatalog[T any](s *Server, g *echo.Group, path string, svc *catalog.Service[T], public bool) {
	api := catalogAPI[T]{svc: svc}
	tag := path[1:]

	var mw []echo.MiddlewareFunc
	deleteMW := []echo.MiddlewareFunc{adminMiddleware}
	if public {
		deleteMW = nil
	} else {
		mw = append(mw, s.jwt)
	}

	cg := g.Group(path, mw...)
	cg.POST("", api.create)
	cg.GET("", api.list)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy, deleteMW...)

	res := svc.Resource()
	s.docs.add(http.MethodPost, path, tag, "Create a "+res, !public)
	s.docs.add(http.MethodGet, path, tag, "List "+tag, !public)
	s.docs.add(http.MethodGet, path+"/:id", tag, "Get a "+res, !public)
	s.docs.add(http.MethodPut, path+"/:id", tag, "Update a "+res, !public)
	s.docs.add(http.MethodDelete, path+"/:id", tag, "Delete a "+res, !public)
}

func (api catalogAPI[T]) create(ctx echo.Context) error {
	var data T
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	entry, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api catalogAPI[T]) list(ctx echo.Context) error {
	var ordering Ordering
	if err := ordering.Bind(ctx); err != nil {
		return err
	}
	entries, err := api.svc.List(ctx.Request().Context(), bindFilter(ctx, api.svc.Filters()), ordering.Orderings)
	if err != nil {
		return errors.Wrapf(err, "listing %s", api.svc.Resource())
	}
	if entries == nil {
		entries = []interface{}{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api catalogAPI[T]) retrieve(ctx echo.Context) error {
	entry, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "finding %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api catalogAPI[T]) update(ctx echo.Context) error {
	patch, err := bindPatch(ctx)
	if err != nil {
		return err
	}
	entry, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), patch)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api catalogAPI[T]) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", api.svc.Resource())
	}
	return deleted(ctx, api.svc.Resource())
}
