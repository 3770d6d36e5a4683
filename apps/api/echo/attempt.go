package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

type attemptApi struct {
	svc     *attempt.Service
	userSvc user.Service
}

func registerAttemptAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attempt.Service, userSvc user.Service) {
	api := attemptApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/attempts", jwt)
	ag.POST("", api.start)
	ag.GET("/results/:assessmentID", api.result)

	// session endpoints; the session is owned by its subject
	sg := ag.Group("/:id")
	sg.GET("", api.retrieve)
	sg.PUT("/answer", api.answer)
	sg.PUT("/navigate", api.navigate)
	sg.POST("/events", api.reportEvent)
	sg.POST("/submit", api.submit)
}

type (
	StartAttemptRequest struct {
		AssessmentID string `json:"assessment_id"`
	}

	AnswerRequest struct {
		QuestionID string      `json:"question_id"`
		Value      interface{} `json:"value"`
	}

	NavigateRequest struct {
		Index int `json:"index"`
	}

	IntegrityEventRequest struct {
		Signal string `json:"signal"`
	}

	// SessionResponse is the session-facing view: the stripped definition,
	// never answer keys or per-question correctness.
	SessionResponse struct {
		ID               string                     `json:"id"`
		Status           string                     `json:"status"`
		Assessment       assessment.Assessment      `json:"assessment"`
		CurrentIndex     int                        `json:"current_index"`
		RemainingSeconds int                        `json:"remaining_seconds"`
		Progress         []attempt.QuestionProgress `json:"progress"`
	}
)

func newSessionResponse(sess *attempt.Session) SessionResponse {
	return SessionResponse{
		ID:               sess.ID,
		Status:           sess.Status().String(),
		Assessment:       sess.Definition(),
		CurrentIndex:     sess.CurrentIndex(),
		RemainingSeconds: int(sess.Remaining().Seconds()),
		Progress:         sess.Progress(),
	}
}

// getOwnSession resolves a live session and enforces ownership. A foreign
// session resolves to 404, not 403; its existence is not disclosed.
func (api *attemptApi) getOwnSession(ctx echo.Context) (*attempt.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	sess, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	if sess.SubjectID != claims.Subject && !claims.IsAdmin {
		return nil, errHttpNotFound
	}
	return sess, nil
}

// Handlers

func (api *attemptApi) start(ctx echo.Context) error {
	var data StartAttemptRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartAttemptRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Start(ctx.Request().Context(), ctxUsr, data.AssessmentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (api *attemptApi) retrieve(ctx echo.Context) error {
	sess, err := api.getOwnSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attemptApi) answer(ctx echo.Context) error {
	sess, err := api.getOwnSession(ctx)
	if err != nil {
		return err
	}

	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	if err := sess.RecordAnswer(data.QuestionID, data.Value); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attemptApi) navigate(ctx echo.Context) error {
	sess, err := api.getOwnSession(ctx)
	if err != nil {
		return err
	}

	var data NavigateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NavigateRequest")
	}
	if err := sess.Navigate(data.Index); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *attemptApi) reportEvent(ctx echo.Context) error {
	sess, err := api.getOwnSession(ctx)
	if err != nil {
		return err
	}

	var data IntegrityEventRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IntegrityEventRequest")
	}

	ev, err := sess.ReportIntegrity(data.Signal)
	if err != nil && errors.Cause(err) != attempt.ErrPersistenceFailed {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *attemptApi) submit(ctx echo.Context) error {
	sess, err := api.getOwnSession(ctx)
	if err != nil {
		return err
	}

	out, err := sess.Finalize(attempt.ReasonManual)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, out)
}

// result returns the caller's stored attempt on an assessment.
func (api *attemptApi) result(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.GetRecord(ctx.Request().Context(), claims.Subject, ctx.Param("assessmentID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}
