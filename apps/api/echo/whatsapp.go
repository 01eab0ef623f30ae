package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	whatsappsvc "github.com/kymoni/elimu/services/whatsapp"
)

type whatsappApi struct {
	deps ServerDeps
}

// registerWhatsAppAPI wires the Meta webhook. Both endpoints are un-authed:
// GET is Meta's verification handshake, POST carries signed platform traffic.
func registerWhatsAppAPI(g *echo.Group, deps ServerDeps) {
	api := whatsappApi{deps: deps}

	wg := g.Group("/whatsapp")
	wg.GET("/webhook", api.verify)
	wg.POST("/webhook", api.receive)
}

// Handlers

func (api *whatsappApi) verify(ctx echo.Context) error {
	mode := ctx.QueryParam("hub.mode")
	token := ctx.QueryParam("hub.verify_token")
	if !api.deps.WhatsApp.VerifyWebhook(mode, token) {
		return errHttpForbidden
	}
	return ctx.String(http.StatusOK, ctx.QueryParam("hub.challenge"))
}

// receive answers parent questions about their child. It always returns 200:
// Meta retries non-2xx deliveries and a reply failure is ours to log, not
// theirs to redeliver.
func (api *whatsappApi) receive(ctx echo.Context) error {
	var payload whatsappsvc.WebhookPayload
	if err := ctx.Bind(&payload); err != nil {
		api.deps.Logger.Warn("parsing whatsapp webhook", err)
		return ctx.NoContent(http.StatusOK)
	}

	for _, msg := range payload.Messages() {
		api.answer(ctx, msg)
	}
	return ctx.NoContent(http.StatusOK)
}

func (api *whatsappApi) answer(ctx echo.Context, msg whatsappsvc.IncomingMessage) {
	reqCtx := ctx.Request().Context()

	std, err := api.deps.StudentSvc.GetByParentPhone(reqCtx, msg.From)
	if err != nil {
		if errors.Cause(err) != student.ErrNotFound {
			api.deps.Logger.Error("finding student by parent phone", err)
			return
		}
		if err = api.deps.WhatsApp.SendText(reqCtx, msg.From, chat.UnknownParentResponse); err != nil {
			api.deps.Logger.Error("replying to unknown whatsapp sender", err)
		}
		return
	}

	reply, err := api.deps.ChatSvc.AskParent(reqCtx, std.ID, msg.Text.Body)
	if err != nil {
		api.deps.Logger.Error("answering parent question", err)
		return
	}
	if err = api.deps.WhatsApp.SendText(reqCtx, msg.From, reply.Answer); err != nil {
		api.deps.Logger.Error("sending whatsapp reply", err)
	}
}
