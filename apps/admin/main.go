package main

import (
	"context"
	"log"
	"os"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	chromasvc "github.com/kymoni/elimu/services/chroma"
	facerecsvc "github.com/kymoni/elimu/services/facerec"
	geminisvc "github.com/kymoni/elimu/services/gemini"
	logsvc "github.com/kymoni/elimu/services/logger"
	mediasvc "github.com/kymoni/elimu/services/media"
	"github.com/kymoni/elimu/storage/database"
	mongorepos "github.com/kymoni/elimu/storage/database/mongo"
)

var logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(false) // CLI errors stay local

	ctx := context.Background()

	// set up DB
	db, err := database.Open(ctx, conf)
	errAndDie(err)
	defer func() { errAndDie(database.Close(ctx, db)) }()

	// the chat stack needs AI and Cloudinary credentials; only seedkb
	// builds it, so adduser/resetpassword run with just the DB.
	var gemini *geminisvc.Service
	defer func() {
		if gemini != nil {
			gemini.Close()
		}
	}()
	newKB := func() (documentAdder, error) {
		var err error
		if gemini, err = geminisvc.NewService(ctx, conf, svcLogger); err != nil {
			return nil, err
		}
		media, err := mediasvc.NewCloudinaryService(conf)
		if err != nil {
			return nil, err
		}
		stdRepo := mongorepos.NewStudentRepository(db)
		faceRec := facerecsvc.NewClient(conf, stdRepo)
		stdSvc := student.NewService(stdRepo, media, faceRec)
		asgSvc := assignment.NewService(mongorepos.NewAssignmentRepository(db), gemini, gemini, svcLogger)
		attSvc := attendance.NewService(mongorepos.NewAttendanceRepository(db), stdSvc, media, faceRec, svcLogger)
		return chat.NewService(mongorepos.NewChatRepository(db), stdSvc, asgSvc, attSvc,
			gemini, gemini, chromasvc.NewClient(conf), svcLogger), nil
	}

	// start CLI
	cli := commandLine{
		usrRepo: mongorepos.NewUserRepository(db),
		newKB:   newKB,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
