package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core/chat"
)

const defaultHistoryLimit = 20

type tutorApi struct {
	deps ServerDeps
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := tutorApi{deps: deps}

	tg := g.Group("/tutor", jwt)

	tg.POST("/chat", api.chat, studentMiddleware())
	tg.GET("/chat/ws", api.chatWS, studentMiddleware())
	tg.GET("/history", api.history, studentMiddleware())
	tg.POST("/documents", api.addDocument, staffMiddleware())
}

// Handlers

func (api *tutorApi) chat(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}

	var data chat.Ask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Ask")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	reply, err := api.deps.ChatSvc.AskTutor(ctx.Request().Context(), std.ID, data.Question, chat.ChannelWeb)
	if err != nil {
		return errors.Wrap(err, "asking tutor")
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (api *tutorApi) history(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}

	limit := defaultHistoryLimit
	if v := ctx.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	interactions, err := api.deps.ChatSvc.History(ctx.Request().Context(), std.ID, limit)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	if interactions == nil {
		interactions = []chat.Interaction{}
	}
	return ctx.JSON(http.StatusOK, interactions)
}

// addDocument feeds a curriculum document into the knowledge base used to
// ground tutor answers.
func (api *tutorApi) addDocument(ctx echo.Context) error {
	var data chat.NewDocument
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDocument")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	doc, err := api.deps.ChatSvc.AddDocument(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}
