// Package rest is the HTTP surface: group chat endpoints, auth, the AI
// tutor proxy, attachments and monitoring, served by echo under /v1.
package rest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"educhat/auth"
	"educhat/errors"
	"educhat/observability"
	"educhat/services"
	"educhat/transport/ws"
)

var validate = validator.New()

const userIDContextKey = "userID"

type Options struct {
	Address        string
	DisableReqLogs bool
	MaxUploadBytes int64
	UploadDir      string
}

// Server wires the handlers onto an echo app.
type Server struct {
	app  *echo.Echo
	opts Options
	log  *slog.Logger

	authSvc  services.IAuthService
	chatSvc  services.IChatService
	groupSvc services.IGroupService
	tokens   *auth.TokenManager
	metrics  *observability.Metrics
	socket   *ws.Handler
}

func NewServer(opts Options, log *slog.Logger, authSvc services.IAuthService,
	chatSvc services.IChatService, groupSvc services.IGroupService,
	tokens *auth.TokenManager, metrics *observability.Metrics, socket *ws.Handler) *Server {
	s := &Server{
		app:      echo.New(),
		opts:     opts,
		log:      log,
		authSvc:  authSvc,
		chatSvc:  chatSvc,
		groupSvc: groupSvc,
		tokens:   tokens,
		metrics:  metrics,
		socket:   socket,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(middleware.Recover())
	s.app.HTTPErrorHandler = s.errorHandler

	s.app.GET("/ws", echo.WrapHandler(s.socket))

	v1 := s.app.Group("/v1")
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)
	v1.GET("/monitoring", s.monitoring)

	authed := v1.Group("", s.jwtMiddleware)
	authed.POST("/group", s.createGroup)
	authed.GET("/groups", s.listGroups)
	authed.GET("/group/:id", s.getGroup)
	authed.POST("/group/:id/message", s.sendGroupMessage)
	authed.POST("/group/:id/members", s.addMembers)
	authed.DELETE("/group/:id/member/:memberId", s.removeMember)
	authed.POST("/group/:id/leave", s.leaveGroup)
	authed.GET("/group/:id/search", s.searchGroup)
	authed.POST("/chat/bot", s.chatBot)
	authed.GET("/conversation/:room/messages", s.conversationHistory)
	authed.POST("/attachments", s.uploadAttachment)
}

func (s *Server) Start() error {
	err := s.app.Start(s.opts.Address)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// jwtMiddleware authenticates the bearer token and stores the caller's
// identity on the request context.
func (s *Server) jwtMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := s.tokens.Validate(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		c.Set(userIDContextKey, claims.UserID)
		return next(c)
	}
}

func requestUserID(c echo.Context) string {
	userID, _ := c.Get(userIDContextKey).(string)
	return userID
}

// errorHandler translates the error taxonomy into HTTP status codes.
// Authorization violations map to 403, missing resources to 404, invariant
// violations and bad input to 400; anything unknown is a logged 500.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    int
		message any
	)

	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors
	switch {
	case stderrors.As(err, &httpErr):
		code = httpErr.Code
		message = httpErr.Message
	case stderrors.As(err, &validationErrs):
		fields := make(map[string]string, len(validationErrs))
		for _, vErr := range validationErrs {
			fields[vErr.Field()] = vErr.Tag()
		}
		code = http.StatusBadRequest
		message = fields
	case stderrors.Is(err, errors.ErrNotAMember), stderrors.Is(err, errors.ErrNotAdmin):
		code = http.StatusForbidden
		message = err.Error()
	case stderrors.Is(err, errors.ErrGroupNotFound), stderrors.Is(err, errors.ErrConversationNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case stderrors.Is(err, errors.ErrLastAdmin),
		stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrInvalidPayload):
		code = http.StatusBadRequest
		message = err.Error()
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		code = http.StatusConflict
		message = err.Error()
	case stderrors.Is(err, errors.ErrInvalidCredentials), stderrors.Is(err, errors.ErrTokenInvalid):
		code = http.StatusUnauthorized
		message = err.Error()
	case stderrors.Is(err, errors.ErrBotUnavailable), stderrors.Is(err, errors.ErrTranslateUnavailable):
		code = http.StatusBadGateway
		message = err.Error()
	default:
		code = http.StatusInternalServerError
		message = http.StatusText(http.StatusInternalServerError)
		s.log.Error("Unhandled request error", "path", c.Path(), "error", err)
	}

	if jsonErr := c.JSON(code, map[string]any{"error": message}); jsonErr != nil {
		s.log.Error("Writing error response failed", "error", jsonErr)
	}
}

func (s *Server) monitoring(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Snapshot())
}
