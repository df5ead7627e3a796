package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	logsvc "github.com/trezcool/canteen/services/logger"
	"github.com/trezcool/canteen/storage/database"
)

var logger core.Logger

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = zl.Sync() }()
	logger = logsvc.NewRollbarLogger(zl.Named("admin"), conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()
	if err = db.Ping(); err != nil {
		logger.Error(fmt.Sprintf("pinging database: %v", err), err)
		return 1
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := newCommandLine(conf, db, validate, translator, os.Stdout)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
