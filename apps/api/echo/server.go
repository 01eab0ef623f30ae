package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
	whatsappsvc "github.com/kymoni/elimu/services/whatsapp"
)

type (
	// ServerDeps are the Server's dependencies.
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       user.Service
		StudentSvc    student.Service
		AssignmentSvc assignment.Service
		AttendanceSvc attendance.Service
		ChatSvc       chat.Service
		WhatsApp      *whatsappsvc.Client
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		deps         ServerDeps
		app          *echo.Echo
		serverErrors chan error
		shutdown     chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	server := &Server{
		deps:         deps,
		app:          echo.New(),
		serverErrors: make(chan error, 1),
		shutdown:     shutdown,
	}
	server.setup()
	return server
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Debug = conf.Debug
	s.app.HideBanner = true
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	// middleware
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"message": "Welcome to Elimu API!"})
	})

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(v1, jwt, s.deps)
	registerStudentAPI(v1, jwt, s.deps)
	registerAssignmentAPI(v1, jwt, s.deps)
	registerAttendanceAPI(v1, jwt, s.deps)
	registerTutorAPI(v1, jwt, s.deps)
	registerWhatsAppAPI(v1, s.deps)
}

// Start starts the server. It blocks until the server stops.
func (s *Server) Start() {
	s.serverErrors <- s.app.Start(s.deps.Conf.ServerAddress())
}

// Errors reports server start failures.
func (s *Server) Errors() <-chan error {
	return s.serverErrors
}

// ShutdownSignal is notified on SIGINT/SIGTERM and on fatal request errors.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown requests a graceful shutdown of the server.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// ServeHTTP makes the server directly usable in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}
