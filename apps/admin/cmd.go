package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/services/report"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	validate   *validator.Validate
	translator ut.Translator
	usrRepo    user.Repository
	usrSvc     user.Service
	stdSvc     student.Service
	attSvc     attendance.Service
	reports    *report.Generator
	out        io.Writer
}

func newCommandLine(conf *core.Config, db *sqlx.DB, validate *validator.Validate, translator ut.Translator, out io.Writer) *commandLine {
	usrRepo := sqlxrepos.NewUserRepository(db)
	stdRepo := sqlxrepos.NewStudentRepository(db)
	return &commandLine{
		conf:       conf,
		db:         db,
		validate:   validate,
		translator: translator,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo),
		stdSvc:     student.NewService(db, stdRepo, validate, translator),
		attSvc:     attendance.NewService(stdRepo, sqlxrepos.NewAttendanceRepository(db), conf),
		reports:    report.NewGenerator(conf),
		out:        out,
	}
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " admin - manage the canteen database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.seedCommand(),
		cli.importCommand(),
		cli.statsCommand(),
		cli.absenteesCommand(),
		cli.reportCommand(),
		cli.badgesCommand(),
	)
	return root
}

// run executes the command line; args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCommand()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(prompt string) (string, error) {
	cli.printf("%s:", prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// describe flattens validation errors into a single readable error.
func (cli *commandLine) describe(err error) error {
	fldErrs, ok := core.FieldErrors(err, cli.translator)
	if !ok {
		return err
	}
	fields := make([]string, 0, len(fldErrs))
	for fld := range fldErrs {
		fields = append(fields, fld)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, fld := range fields {
		msgs = append(msgs, fld+": "+fldErrs[fld])
	}
	return errors.New(strings.Join(msgs, "; "))
}
