package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

type assessmentApi struct {
	svc        *assessment.Service
	attemptSvc *attempt.Service
	userSvc    user.Service
	validate   *validator.Validate
}

func registerAssessmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *assessment.Service,
	attemptSvc *attempt.Service,
	userSvc user.Service,
	validate *validator.Validate,
) {
	api := assessmentApi{
		svc:        svc,
		attemptSvc: attemptSvc,
		userSvc:    userSvc,
		validate:   validate,
	}

	// the authoring surface; students never see full definitions here
	ag := g.Group("/assessments", jwt, staffMiddleware())
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/publish", api.publish)
	ag.DELETE("/:id", api.destroy, adminMiddleware())
	ag.GET("/:id/attempts", api.queryAttempts)

	// the one student-readable view: published definitions, keys stripped
	g.GET("/assessments/:id/session-view", api.sessionView, jwt)
}

// Handlers

func (api *assessmentApi) create(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.Create(reqCtx, data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) query(ctx echo.Context) error {
	all, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if all == nil {
		all = []assessment.Assessment{}
	}
	return ctx.JSON(http.StatusOK, all)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) sessionView(ctx echo.Context) error {
	a, err := api.svc.GetForSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment for session")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	var data assessment.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) publish(ctx echo.Context) error {
	a, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// queryAttempts returns the stored attempt records on an assessment;
// the teacher-facing results view.
func (api *assessmentApi) queryAttempts(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	// 404 on unknown id instead of an empty list
	if _, err := api.svc.GetByID(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "getting assessment")
	}

	recs, err := api.attemptSvc.QueryByAssessment(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if recs == nil {
		recs = []attempt.AttemptRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}
