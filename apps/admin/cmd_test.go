package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
	testutil "github.com/trezcool/canteen/tests"
)

const strongPwd = "Cant33n!Secure"

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	conf := testutil.NewConfig()
	db := testutil.PrepareDB(t, conf)
	validate, translator := testutil.NewValidator()

	var out bytes.Buffer
	return newCommandLine(conf, db, validate, translator, &out), &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string // substring of the error
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()

	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v, wantErrStr %q", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if !strings.Contains(err.Error(), tt.wantErrStr) {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_root(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Contains(t, out.String(), "resetpassword")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotEngine string
	gooseRunFunc = func(db *sql.DB, engine, command string, args ...string) error {
		gotEngine = engine
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "meal", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Equal(t, cli.conf.Database.Engine, gotEngine)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: strongPwd}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-u", usr.Username.String}, extra: extra{pwd: "lol"}, wantErrStr: "password: password must contain at least 8 characters"},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username.String}, extra: extra{pwd: strongPwd}},
		{name: "reset with email", args: []string{"resetpassword", "-u", "AWE@test.cd"}, extra: extra{pwd: "An0ther#Passw0rd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		var pwd string
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}

			refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)

	existing := testutil.CreateUser(t, cli.usrRepo, "Cook", "cook", "", "mdr", []string{}, false)

	type extra struct {
		pwd       string
		wantRoles []string
		wantName  string
	}
	tests := []cliTest{
		{name: "no username or email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-u", "staff1"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-u", "staff1", "--role", "lol"}, extra: extra{pwd: strongPwd}, wantErrStr: "roles:"},
		{name: "weak password", args: []string{"adduser", "-u", "staff1"}, extra: extra{pwd: "password"}, wantErrStr: "password:"},
		{
			name:  "staff by default",
			args:  []string{"adduser", "-u", "Staff1", "--name", "Staff One"},
			extra: extra{pwd: strongPwd, wantRoles: []string{user.RoleStaff}, wantName: "Staff One"},
		},
		{
			name:  "admin",
			args:  []string{"adduser", "-e", "boss@canteen.test", "--admin"},
			extra: extra{pwd: strongPwd, wantRoles: []string{user.RoleAdminOwner}, wantName: "boss@canteen.test"},
		},
		{
			name:  "update existing",
			args:  []string{"adduser", "-u", existing.Username.String, "--role", user.RoleAdmin},
			extra: extra{pwd: strongPwd, wantRoles: []string{user.RoleAdmin}, wantName: "Cook"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		e, _ := tt.extra.(extra)
		mockPassword(e.pwd)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}
			assert.Contains(t, out.String(), "saved")

			login := tt.args[2]
			usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), login)
			require.NoError(t, err)
			assert.True(t, usr.IsActive)
			assert.Equal(t, e.wantName, usr.Name)
			assert.ElementsMatch(t, e.wantRoles, []string(usr.Roles))
			assert.NoError(t, usr.CheckPassword(e.pwd))
		})
	}

	t.Run("existing user keeps its id", func(t *testing.T) {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), "cook")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, usr.ID)
	})
}

func Test_commandLine_students(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()

	roster := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(roster, []byte(
		"id,first_name,last_name,dob,gender,class_name\n"+
			"2001,Lina,Haddad,2011,F,3C\n"+
			"2002,,Nasser,2011,M,3C\n"), 0o600))

	tests := []cliTest{
		{name: "seed", args: []string{"seed"}, extra: "3 students seeded"},
		{name: "seed twice", args: []string{"seed"}, extra: "3 students seeded"},
		{name: "import: no file", args: []string{"import"}, wantErrStr: "accepts 1 arg(s)"},
		{name: "import: unsupported", args: []string{"import", filepath.Join(dir, "roster.pdf")}, wantErr: student.ErrUnsupportedFormat},
		{name: "import: missing file", args: []string{"import", filepath.Join(dir, "lol.csv")}, wantErrStr: "opening roster"},
		{name: "import", args: []string{"import", roster}, extra: "1 students imported, 1 rows failed"},
		{name: "badges: no output", args: []string{"badges"}, wantErrStr: "accepts 1 arg(s)"},
		{name: "badges", args: []string{"badges", filepath.Join(dir, "badges.pdf")}, extra: "4 badges written"},
		{name: "badges by class", args: []string{"badges", filepath.Join(dir, "badges-1a.pdf"), "--class", "1A"}, extra: "2 badges written"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			checkErr(t, tt, err)
			if want, ok := tt.extra.(string); ok && err == nil {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "badges.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = cli.stdSvc.GetByID(context.Background(), "2001")
	assert.NoError(t, err)
}

func Test_commandLine_reports(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()

	stdRepo := sqlxrepos.NewStudentRepository(cli.db)
	attRepo := sqlxrepos.NewAttendanceRepository(cli.db)
	s1 := testutil.CreateStudent(t, stdRepo, "1001", "Ahmad", "Ali", student.GenderMale, "1A")
	testutil.CreateStudent(t, stdRepo, "1002", "Sara", "Mounir", student.GenderFemale, "1A")
	s3 := testutil.CreateStudent(t, stdRepo, "1003", "Omar", "Khaled", student.GenderMale, "2B")

	d := core.NewDate(2024, 3, 4)
	testutil.CreateRecord(t, attRepo, s1.ID, d)
	testutil.CreateRecord(t, attRepo, s3.ID, d.AddDays(-10))

	tests := []cliTest{
		{name: "stats", args: []string{"stats", "--date", d.String()}, extra: "gender,total,present,absent\nM,2,1,1\nF,1,0,1\nTOTAL,3,1,2\n"},
		{name: "stats: invalid date", args: []string{"stats", "--date", "04/03/2024"}, wantErr: core.ErrInvalidDate},
		{name: "absentees", args: []string{"absentees", "--as-of", d.String()}, extra: "1 students absent from 2024-02-18 to 2024-03-04"},
		{name: "absentees: 5 days", args: []string{"absentees", "--as-of", d.String(), "--days", "5"}, extra: "2 students absent from 2024-02-28 to 2024-03-04"},
		{name: "absentees: negative days", args: []string{"absentees", "--days", "-1"}, wantErrStr: "days:"},
		{name: "report: no output", args: []string{"report"}, wantErrStr: "accepts 1 arg(s)"},
		{name: "report", args: []string{"report", filepath.Join(dir, "report.pdf"), "--date", d.String()}, extra: "report for 2024-03-04 written"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			checkErr(t, tt, err)
			if want, ok := tt.extra.(string); ok && err == nil {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	t.Run("absentees are listed", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "absentees", "--as-of", d.String(), "--days", "5"}))
		assert.Contains(t, out.String(), "Sara Mounir")
		assert.Contains(t, out.String(), "Omar Khaled")
		assert.NotContains(t, out.String(), "Ahmad Ali")
	})

	pdf, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
