package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
)

type assignmentApi struct {
	deps ServerDeps
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := assignmentApi{deps: deps}

	ag := g.Group("/assignments", jwt)

	ag.POST("", api.create, staffMiddleware())
	ag.GET("", api.query)
	ag.POST("/generate", api.generatePreview, staffMiddleware())

	// static segments must be registered before "/:id"
	ag.GET("/submissions/me", api.mySubmissions, studentMiddleware())
	ag.GET("/submissions/:id", api.retrieveSubmission, staffMiddleware())
	ag.PUT("/submissions/:id/grade", api.overrideGrade, staffMiddleware())

	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, staffMiddleware())
	ag.DELETE("/:id", api.destroy, staffMiddleware())
	ag.POST("/:id/submissions", api.submit, studentMiddleware())
	ag.GET("/:id/submissions", api.querySubmissions, staffMiddleware())
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asg, err := api.deps.AssignmentSvc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}
	filter.Clean()

	asgs, err := api.deps.AssignmentSvc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}

	// answer keys never leave the building for students
	if claims, err := getContextClaims(ctx); err == nil && !(claims.IsTeacher || claims.IsAdmin) {
		for i := range asgs {
			asgs[i] = asgs[i].ForStudent()
		}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, err := api.deps.AssignmentSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding assignment")
	}

	if claims, err := getContextClaims(ctx); err == nil && !(claims.IsTeacher || claims.IsAdmin) {
		asg = asg.ForStudent()
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	asg, err := api.deps.AssignmentSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == assignment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	if err := api.deps.AssignmentSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) generatePreview(ctx echo.Context) error {
	var data assignment.GenerateParams
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateParams")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	questions, analysis, err := api.deps.AssignmentSvc.GeneratePreview(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating questions")
	}
	return ctx.JSON(http.StatusOK, GeneratePreviewResponse{Questions: questions, Analysis: analysis})
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}

	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	data.AssignmentID = ctx.Param("id")
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sub, err := api.deps.AssignmentSvc.Submit(ctx.Request().Context(), std.ID, data)
	if err != nil {
		switch errors.Cause(err) {
		case assignment.ErrNotFound:
			return errHttpNotFound
		case assignment.ErrPastDue, assignment.ErrAlreadySubmitted, assignment.ErrAnswerCount:
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	subs, err := api.deps.AssignmentSvc.QuerySubmissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) mySubmissions(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}

	subs, err := api.deps.AssignmentSvc.QueryStudentSubmissions(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	sub, err := api.deps.AssignmentSvc.GetSubmissionByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) overrideGrade(ctx echo.Context) error {
	var data assignment.GradeOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeOverride")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.deps.AssignmentSvc.OverrideGrade(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "overriding grade")
	}
	return ctx.JSON(http.StatusOK, sub)
}

type GeneratePreviewResponse struct {
	Questions []assignment.Question `json:"questions"`
	Analysis  assignment.Analysis   `json:"analysis"`
}
