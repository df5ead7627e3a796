// Package testutil holds the fixtures shared by the tests.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/storage/database"
)

// NewConfig returns a TEST configuration backed by an in-memory sqlite database.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Build:            "test",
		Debug:            true,
		TestMode:         true,
		AppName:          "Canteen",
		SecretKey:        "test-secret-key",
		DefaultFromEmail: mail.Address{Name: "Canteen", Address: "noreply@canteen.test"},
		Server: core.ServerConfig{
			Host:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 10 * time.Minute,
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSQLite,
			Path:   ":memory:",
		},
		Canteen: core.CanteenConfig{
			AbsenceWindowDays: 15,
			Timezone:          "UTC",
			Location:          time.UTC,
			AlertCron:         "0 18 * * 1-5",
			AlertRecipients:   []mail.Address{{Name: "Principal", Address: "principal@canteen.test"}},
			ScanCooldown:      4 * time.Second,
		},
	}
}

// PrepareDB opens a fresh migrated database, closed at the end of the test.
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	t.Helper()

	cfg := NewConfig()
	if len(conf) > 0 && conf[0] != nil {
		cfg = conf[0]
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, cfg.Database.Engine); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

// NewValidator returns a validator with every domain validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	id, firstName, lastName string,
	gender student.Gender,
	className string,
) student.Student {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	std, err := repo.CreateStudent(context.Background(), student.Student{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		DOB:       null.StringFrom("2010"),
		Gender:    gender,
		ClassName: className,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	// read it back so that timestamps match what the API returns
	if std, err = repo.GetStudent(context.Background(), std.ID); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateRecord(t *testing.T, repo attendance.Repository, studentID string, date core.Date, scannedAt ...time.Time) attendance.Record {
	t.Helper()

	tstamp := date.Time().Add(12 * time.Hour)
	if len(scannedAt) > 0 {
		tstamp = scannedAt[0]
	}
	rec, err := repo.CreateRecord(context.Background(), attendance.Record{
		StudentID: studentID,
		Date:      date,
		ScannedAt: tstamp.UTC().Truncate(time.Second),
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	if rec, err = repo.GetRecord(context.Background(), rec.StudentID, rec.Date); err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Second)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Second)
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  null.NewString(uname, uname != ""),
		Email:     null.NewString(email, email != ""),
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if usr, err = repo.GetUser(context.Background(), user.GetFilter{ID: usr.ID}); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
