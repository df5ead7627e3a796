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

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/services/report"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		UserSvc       user.Service
		StudentSvc    student.Service
		AttendanceSvc attendance.Service
		Reports       *report.Generator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *Auth
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     NewAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	api.GET("/config", s.clientConfig)

	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerUserAPI(api, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerStudentAPI(api, jwt, s.deps.StudentSvc, s.deps.AttendanceSvc, s.deps.Reports, s.deps.Validate)
	registerAttendanceAPI(api, jwt, s.deps.AttendanceSvc, conf.Canteen.Location)
	registerStatsAPI(api, jwt, s.deps.AttendanceSvc, s.deps.Reports)
}

// Start listens on conf.Server.Host; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to gracefully shut down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Auth exposes the token issuer, mainly for tests and the admin CLI.
func (s *Server) Auth() *Auth {
	return s.auth
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

// ClientConfig holds the settings the scanner app needs.
type ClientConfig struct {
	AppName           string    `json:"app_name"`
	Build             string    `json:"build"`
	Today             core.Date `json:"today"`
	Timezone          string    `json:"timezone"`
	AbsenceWindowDays int       `json:"absence_window_days"`
	ScanCooldownMS    int64     `json:"scan_cooldown_ms"`
	Genders           []string  `json:"genders"`
}

func (s *Server) clientConfig(ctx echo.Context) error {
	conf := s.deps.Conf
	genders := make([]string, 0, len(student.Genders))
	for _, g := range student.Genders {
		genders = append(genders, string(g))
	}
	return ctx.JSON(http.StatusOK, ClientConfig{
		AppName:           conf.AppName,
		Build:             conf.Build,
		Today:             s.deps.AttendanceSvc.Today(),
		Timezone:          conf.Canteen.Location.String(),
		AbsenceWindowDays: conf.Canteen.AbsenceWindowDays,
		ScanCooldownMS:    conf.Canteen.ScanCooldown.Milliseconds(),
		Genders:           genders,
	})
}
