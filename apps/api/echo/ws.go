package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS is handled upstream
}

type (
	wsQuestion struct {
		Question string `json:"question"`
	}

	wsAnswer struct {
		Answer  string `json:"answer"`
		Intent  string `json:"intent"`
		Subject string `json:"subject,omitempty"`
		Error   string `json:"error,omitempty"`
	}
)

// chatWS runs a live tutoring session over a websocket: one JSON question in,
// one JSON answer out, until the client hangs up.
func (api *tutorApi) chatWS(ctx echo.Context) error {
	std, err := getContextStudent(ctx, api.deps.StudentSvc)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer conn.Close()

	for {
		var q wsQuestion
		if err := conn.ReadJSON(&q); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				api.deps.Logger.Warn("tutor websocket closed unexpectedly", err)
			}
			return nil
		}

		ask := chat.Ask{Question: q.Question}
		if err := ask.Validate(api.deps.Validate); err != nil {
			if wErr := conn.WriteJSON(wsAnswer{Error: "question is required (max 2000 characters)"}); wErr != nil {
				return nil
			}
			continue
		}

		reply, err := api.deps.ChatSvc.AskTutor(ctx.Request().Context(), std.ID, ask.Question, chat.ChannelWeb)
		if err != nil {
			api.deps.Logger.Error("asking tutor over websocket", err)
			if wErr := conn.WriteJSON(wsAnswer{Error: "something went wrong, please try again"}); wErr != nil {
				return nil
			}
			continue
		}
		if err := conn.WriteJSON(wsAnswer{Answer: reply.Answer, Intent: reply.Intent, Subject: reply.Subject}); err != nil {
			return nil
		}
	}
}
