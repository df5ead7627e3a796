package student

import (
	"context"
	"io"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	ErrIDExists = errors.New("a student with this id already exists")

	// DemoStudents are the students loaded by Seed.
	DemoStudents = []NewStudent{
		{ID: "1001", FirstName: "Ahmad", LastName: "Ali", DOB: "2010", Gender: string(GenderMale), ClassName: "1A"},
		{ID: "1002", FirstName: "Sara", LastName: "Mounir", DOB: "2010", Gender: string(GenderFemale), ClassName: "1A"},
		{ID: "1003", FirstName: "Omar", LastName: "Khaled", DOB: "2011", Gender: string(GenderMale), ClassName: "2B"},
	}
)

type (
	Repository interface {
		StudentExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// UpsertStudent inserts the student or replaces the existing one with the same ID.
		UpsertStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of ID, FirstName, LastName or ClassName.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckIDUniqueness(id string) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		// Import upserts the students read from r; invalid rows are reported, not fatal.
		Import(ctx context.Context, r io.Reader, format ImportFormat) (ImportResult, error)
		// Seed upserts the DemoStudents.
		Seed(ctx context.Context) ([]Student, error)
	}

	service struct {
		db         core.DB
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, validate *validator.Validate, translator ut.Translator) Service {
	return &service{
		db:         db,
		repo:       repo,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

func (svc *service) CheckIDUniqueness(id string) error {
	exists, err := svc.repo.StudentExists(context.Background(), id)
	if err != nil {
		return errors.Wrap(err, "checking student id uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrIDExists, core.FieldError{Field: "id", Error: ErrIDExists.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := svc.now()
	std := ns.student()
	std.CreatedAt = now
	std.UpdatedAt = now
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	id = core.CleanString(id)
	if id == "" {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	std = us.apply(std)
	std.UpdatedAt = svc.now()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteStudentsByID(ctx, ids)
	return err
}

func (svc *service) Seed(ctx context.Context) ([]Student, error) {
	students := make([]Student, 0, len(DemoStudents))
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, ns := range DemoStudents {
			std, err := svc.upsert(ctx, ns, tx)
			if err != nil {
				return errors.Wrapf(err, "seeding student %s", ns.ID)
			}
			students = append(students, std)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (svc *service) upsert(ctx context.Context, ns NewStudent, exec core.DBExecutor) (Student, error) {
	now := svc.now()
	std := ns.student()
	std.CreatedAt = now
	std.UpdatedAt = now
	return svc.repo.UpsertStudent(ctx, std, exec)
}
