package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/form"
)

var instanceFilters = []string{"typeFormulaire", "createdBy", "idSousDirection"}

func (s *Server) registerFormAPI(g *echo.Group) {
	// form types: reads are public
	tg := g.Group("/type-formulaires")
	tg.GET("", s.listFormTypes)
	tg.GET("/:id", s.retrieveFormType)
	tg.POST("", s.createFormType, s.jwt)
	tg.PUT("/:id", s.updateFormType, s.jwt)
	tg.DELETE("/:id", s.destroyFormType, s.jwt)
	s.docs.add(http.MethodGet, "/type-formulaires", "type-formulaires", "List form types", false)
	s.docs.add(http.MethodGet, "/type-formulaires/:id", "type-formulaires", "Get a form type with its recipients' contacts", false)
	s.docs.add(http.MethodPost, "/type-formulaires", "type-formulaires", "Create a form type", true)
	s.docs.add(http.MethodPut, "/type-formulaires/:id", "type-formulaires", "Replace a form type", true)
	s.docs.add(http.MethodDelete, "/type-formulaires/:id", "type-formulaires", "Delete a form type", true)

	// form instances: reads are public
	ig := g.Group("/formulaires")
	ig.GET("", s.listFormInstances)
	ig.GET("/:id", s.retrieveFormInstance)
	ig.POST("", s.createFormInstance, s.jwt)
	ig.PUT("/:id", s.updateFormInstance, s.jwt)
	ig.DELETE("/:id", s.destroyFormInstance, s.jwt)
	s.docs.add(http.MethodGet, "/formulaires", "formulaires", "List form instances", false)
	s.docs.add(http.MethodGet, "/formulaires/:id", "formulaires", "Get a form instance", false)
	s.docs.add(http.MethodPost, "/formulaires", "formulaires", "Submit a form instance", true)
	s.docs.add(http.MethodPut, "/formulaires/:id", "formulaires", "Update a form instance", true)
	s.docs.add(http.MethodDelete, "/formulaires/:id", "formulaires", "Delete a form instance", true)
}

// Form types

func (s *Server) createFormType(ctx echo.Context) error {
	var data form.NewFormType
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	ft, err := s.svcs.FormTypes.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating form type")
	}
	return ctx.JSON(http.StatusCreated, ft)
}

// listFormTypes resolves the recipients when `?details=true`.
func (s *Server) listFormTypes(ctx echo.Context) error {
	var details bool
	if val := ctx.QueryParam("details"); val != "" {
		var err error
		if details, err = strconv.ParseBool(val); err != nil {
			return core.NewFieldError("details", "must be a boolean")
		}
	}
	var ordering Ordering
	if err := ordering.Bind(ctx); err != nil {
		return err
	}

	types, err := s.svcs.FormTypes.List(ctx.Request().Context(), details, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing form types")
	}
	if types == nil {
		types = []interface{}{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (s *Server) retrieveFormType(ctx echo.Context) error {
	ft, err := s.svcs.FormTypes.GetWithContacts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding form type")
	}
	return ctx.JSON(http.StatusOK, ft)
}

func (s *Server) updateFormType(ctx echo.Context) error {
	var data form.UpdateFormType
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	ft, err := s.svcs.FormTypes.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating form type")
	}
	return ctx.JSON(http.StatusOK, ft)
}

func (s *Server) destroyFormType(ctx echo.Context) error {
	if err := s.svcs.FormTypes.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting form type")
	}
	return deleted(ctx, "form type")
}

// Form instances

func (s *Server) createFormInstance(ctx echo.Context) error {
	var data form.NewFormInstance
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	fi, err := s.svcs.FormInstances.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating form instance")
	}
	return ctx.JSON(http.StatusCreated, fi)
}

func (s *Server) listFormInstances(ctx echo.Context) error {
	var ordering Ordering
	if err := ordering.Bind(ctx); err != nil {
		return err
	}
	instances, err := s.svcs.FormInstances.List(ctx.Request().Context(), bindFilter(ctx, instanceFilters), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing form instances")
	}
	if instances == nil {
		instances = []form.InstanceView{}
	}
	return ctx.JSON(http.StatusOK, instances)
}

func (s *Server) retrieveFormInstance(ctx echo.Context) error {
	fi, err := s.svcs.FormInstances.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding form instance")
	}
	return ctx.JSON(http.StatusOK, fi)
}

func (s *Server) updateFormInstance(ctx echo.Context) error {
	var data form.UpdateFormInstance
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	fi, err := s.svcs.FormInstances.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating form instance")
	}
	return ctx.JSON(http.StatusOK, fi)
}

func (s *Server) destroyFormInstance(ctx echo.Context) error {
	if err := s.svcs.FormInstances.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting form instance")
	}
	return deleted(ctx, "form instance")
}
