package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/student"
)

type studentApi struct {
	deps ServerDeps
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{deps: deps}

	sg := g.Group("/students", jwt)

	// own profile; students only
	sg.GET("/me", api.retrieveOwn, studentMiddleware())
	sg.PUT("/me/preferences", api.updateOwnPreferences, studentMiddleware())
	sg.GET("/me/progress", api.ownProgress, studentMiddleware())

	// staff endpoints
	sg.POST("", api.enroll, staffMiddleware())
	sg.GET("", api.query, staffMiddleware())
	sg.GET("/:id", api.retrieve, staffMiddleware())
	sg.PUT("/:id/preferences", api.updatePreferences, staffMiddleware())
	sg.POST("/:id/photo", api.uploadPhoto, staffMiddleware())
	sg.POST("/:id/feedback", api.addFeedback, staffMiddleware())
	sg.GET("/:id/progress", api.progress, staffMiddleware())
}

// getContextStudent resolves the authenticated user's student profile.
func getContextStudent(ctx echo.Context, svc student.Service) (student.Student, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return student.Student{}, err
	}
	std, err := svc.GetByUserID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, errHttpNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student profile")
	}
	return std, nil
}

// Handlers

func (api *studentApi) enroll(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	std, err := api.deps.StudentSvc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == student.ErrProfileExists {
			return core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()

	students, err := api.deps.StudentSvc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.deps.StudentSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) retrieveOwn(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) updateOwnPreferences(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}
	return api.applyPreferences(ctx, std.ID)
}

func (api *studentApi) updatePreferences(ctx echo.Context) error {
	return api.applyPreferences(ctx, ctx.Param("id"))
}

func (api *studentApi) applyPreferences(ctx echo.Context, id string) error {
	var data student.UpdatePreferences
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePreferences")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	std, err := api.deps.StudentSvc.UpdatePreferences(ctx.Request().Context(), id, data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating preferences")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) uploadPhoto(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("photo")
	if err != nil {
		return core.NewValidationError(errors.New("photo file is required"),
			core.FieldError{Field: "photo", Error: "photo file is required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded photo")
	}
	defer file.Close()

	std, err := api.deps.StudentSvc.SetPhoto(ctx.Request().Context(), ctx.Param("id"), file, fileHeader.Filename)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting student photo")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) addFeedback(ctx echo.Context) error {
	var data student.Feedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Feedback")
	}
	if data.Feedback == "" {
		return core.NewValidationError(errors.New("feedback is required"),
			core.FieldError{Field: "feedback", Error: "feedback is required"})
	}

	if err := api.deps.StudentSvc.AddFeedback(ctx.Request().Context(), ctx.Param("id"), data); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding feedback")
	}
	return ctx.NoContent(http.StatusCreated)
}

func (api *studentApi) progress(ctx echo.Context) error {
	return api.renderProgress(ctx, ctx.Param("id"))
}

func (api *studentApi) ownProgress(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}
	return api.renderProgress(ctx, std.ID)
}

func (api *studentApi) renderProgress(ctx echo.Context, studentID string) error {
	progress, err := api.deps.AssignmentSvc.Progress(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "aggregating progress")
	}
	if progress == nil {
		progress = []assignment.SubjectProgress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}
