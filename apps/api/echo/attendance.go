package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/attendance"
)

type attendanceApi struct {
	deps ServerDeps
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{deps: deps}

	ag := g.Group("/attendance", jwt, staffMiddleware())

	ag.POST("", api.markFromPhoto)
	ag.GET("/students/:id", api.queryByStudent)
	ag.GET("/students/:id/summary", api.summarize)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/corrections", api.correct)
}

// Handlers

// markFromPhoto takes a multipart form with a classroom "photo" and the
// "grade_level" being marked.
func (api *attendanceApi) markFromPhoto(ctx echo.Context) error {
	gradeLevel := core.CleanString(ctx.FormValue("grade_level"))
	if gradeLevel == "" {
		return core.NewValidationError(errors.New("grade_level is required"),
			core.FieldError{Field: "grade_level", Error: "grade_level is required"})
	}
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

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	s, err := api.deps.AttendanceSvc.MarkFromPhoto(ctx.Request().Context(), claims.Subject, gradeLevel, file, fileHeader.Filename)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	s, err := api.deps.AttendanceSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *attendanceApi) correct(ctx echo.Context) error {
	var data attendance.Correction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Correction")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	s, err := api.deps.AttendanceSvc.Correct(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err) {
		case attendance.ErrNotFound:
			return errHttpNotFound
		case attendance.ErrStudentNotInSet:
			return core.NewValidationError(errors.Cause(err),
				core.FieldError{Field: "student_id", Error: attendance.ErrStudentNotInSet.Error()})
		}
		return errors.Wrap(err, "correcting session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *attendanceApi) queryByStudent(ctx echo.Context) error {
	sessions, err := api.deps.AttendanceSvc.QueryByStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) summarize(ctx echo.Context) error {
	summary, err := api.deps.AttendanceSvc.Summarize(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, summary)
}
