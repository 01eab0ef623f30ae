package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/kymoni/elimu/apps/api/echo"
	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
	chromasvc "github.com/kymoni/elimu/services/chroma"
	emailsvc "github.com/kymoni/elimu/services/email"
	facerecsvc "github.com/kymoni/elimu/services/facerec"
	geminisvc "github.com/kymoni/elimu/services/gemini"
	logsvc "github.com/kymoni/elimu/services/logger"
	mediasvc "github.com/kymoni/elimu/services/media"
	whatsappsvc "github.com/kymoni/elimu/services/whatsapp"
	"github.com/kymoni/elimu/storage/database"
	mongorepos "github.com/kymoni/elimu/storage/database/mongo"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	ctx := context.Background()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = database.Close(ctx, db); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("ensuring indexes: %v", err), err)
	}

	// set up external services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	gemini, err := geminisvc.NewService(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up gemini: %v", err), err)
	}
	defer gemini.Close()

	chroma := chromasvc.NewClient(conf)

	media, err := mediasvc.NewCloudinaryService(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cloudinary: %v", err), err)
	}

	whatsApp := whatsappsvc.NewClient(conf)

	// set up repositories & domain services
	stdRepo := mongorepos.NewStudentRepository(db)
	faceRec := facerecsvc.NewClient(conf, stdRepo)

	usrSvc := user.NewService(mongorepos.NewUserRepository(db), mailSvc, conf)
	stdSvc := student.NewService(stdRepo, media, faceRec)
	asgSvc := assignment.NewService(mongorepos.NewAssignmentRepository(db), gemini, gemini, logger)
	attSvc := attendance.NewService(mongorepos.NewAttendanceRepository(db), stdSvc, media, faceRec, logger)
	chatSvc := chat.NewService(mongorepos.NewChatRepository(db), stdSvc, asgSvc, attSvc, gemini, gemini, chroma, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			StudentSvc:    stdSvc,
			AssignmentSvc: asgSvc,
			AttendanceSvc: attSvc,
			ChatSvc:       chatSvc,
			WhatsApp:      whatsApp,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
