package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/report"
)

var reportFilters = []string{"idInspecteur", "idEtablissement", "numero"}

func (s *Server) registerReports(g *echo.Group) {
	r := s.svcs.Reports
	registerReport(s, g, "/premieres-visites", "premieresVisites", r.FirstVisits)
	registerReport(s, g, "/inspections-pedagogiques", "inspections", r.PedagogicalInspections)
	registerReport(s, g, "/inspections-financieres", "", r.FinancialInspections)
	registerReport(s, g, "/avis-disciplinaires", "", r.DisciplinaryNotices)
	registerReport(s, g, "/rapports-annuels", "rapports", r.AnnualReports)
	registerReport(s, g, "/rapports-trimestriels", "rapports", r.QuarterlyReports)
	registerReport(s, g, "/controles-viabilite", "", r.ViabilityControls)
	registerReport(s, g, "/animations-pedagogiques", "animations", r.PedagogicalCoachings)
}

type reportAPI[S any] struct {
	svc     *report.Service[S]
	manyKey string
}

// registerReport mounts the routes of one report kind on path, all behind the JWT gate.
// `POST path/many` is only mounted when manyKey is set; it names the array in the body.
func registerReport[S any](s *Server, g *echo.Group, path, manyKey string, svc *report.Service[S]) {
	api := reportAPI[S]{svc: svc, manyKey: manyKey}
	tag := path[1:]
	res := svc.Resource()

	rg := g.Group(path, s.jwt)
	rg.POST("", api.create)
	rg.GET("", api.list)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
	if manyKey != "" {
		rg.POST("/many", api.createMany)
		s.docs.add(http.MethodPost, path+"/many", tag, "Create several "+res+" records at once", true)
	}

	s.docs.add(http.MethodPost, path, tag, "Create a "+res+" ("+svc.FormCode()+")", true)
	s.docs.add(http.MethodGet, path, tag, "List "+res+" records", true)
	s.docs.add(http.MethodGet, path+"/:id", tag, "Get a "+res, true)
	s.docs.add(http.MethodPut, path+"/:id", tag, "Update a "+res, true)
	s.docs.add(http.MethodDelete, path+"/:id", tag, "Delete a "+res, true)
}

func (api reportAPI[S]) create(ctx echo.Context) error {
	var data report.Report[S]
	if err := bindJSON(ctx, &data); err != nil {
		return err
	}
	rep, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusCreated, rep)
}

func (api reportAPI[S]) createMany(ctx echo.Context) error {
	var body map[string][]report.Report[S]
	if err := bindJSON(ctx, &body); err != nil {
		return err
	}
	data, ok := body[api.manyKey]
	if !ok {
		return core.NewFieldError(api.manyKey, "required")
	}
	reps, err := api.svc.CreateMany(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrapf(err, "creating %s records", api.svc.Resource())
	}
	if reps == nil {
		reps = []report.View[S]{}
	}
	return ctx.JSON(http.StatusOK, reps)
}

func (api reportAPI[S]) list(ctx echo.Context) error {
	var ordering Ordering
	if err := ordering.Bind(ctx); err != nil {
		return err
	}
	reps, err := api.svc.List(ctx.Request().Context(), bindFilter(ctx, reportFilters), ordering.Orderings)
	if err != nil {
		return errors.Wrapf(err, "listing %s records", api.svc.Resource())
	}
	if reps == nil {
		reps = []report.View[S]{}
	}
	return ctx.JSON(http.StatusOK, reps)
}

func (api reportAPI[S]) retrieve(ctx echo.Context) error {
	rep, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "finding %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api reportAPI[S]) update(ctx echo.Context) error {
	patch, err := bindPatch(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), patch)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.svc.Resource())
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api reportAPI[S]) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", api.svc.Resource())
	}
	return deleted(ctx, api.svc.Resource())
}
