package rest

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"educhat/domain/chat"
)

type botRequest struct {
	Message  string `json:"message" validate:"required,max=2048"`
	Language string `json:"language" validate:"omitempty,len=2"`
}

type botResponse struct {
	Reply string `json:"reply"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

// chatBot proxies a tutoring question to the AI collaborator, translating
// in and out of English when the input language differs.
func (s *Server) chatBot(c echo.Context) error {
	var req botRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	reply, err := s.chatSvc.BotReply(c.Request().Context(), req.Message, req.Language)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, botResponse{Reply: reply})
}

// conversationHistory pages a direct conversation, newest first. The cursor
// query parameter resumes a previous page.
func (s *Server) conversationHistory(c echo.Context) error {
	var cursor *string
	if raw := c.QueryParam("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := s.chatSvc.History(c.Param("room"), cursor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, historyResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) messageResponse {
			return messageResponse{
				ID:        m.ID.String(),
				Room:      m.Room,
				SenderID:  m.SenderID,
				Body:      m.Body,
				Language:  m.Language,
				CreatedAt: m.CreatedAt,
			}
		}),
		Cursor: next,
	})
}
