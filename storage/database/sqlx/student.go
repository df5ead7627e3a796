package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/storage/database"
)

const studentTable = "student"

var (
	studentColumns = []string{"id", "first_name", "last_name", "dob", "gender", "class_name", "created_at", "updated_at"}

	studentOrderings = map[string]string{
		"id":         "id",
		"first_name": "first_name",
		"last_name":  "last_name",
		"gender":     "gender",
		"class_name": "class_name",
		"created_at": "created_at",
	}
)

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db core.DB) student.Repository {
	return &studentRepository{baseRepository{db: db}}
}

func studentValues(std student.Student) []interface{} {
	return []interface{}{std.ID, std.FirstName, std.LastName, std.DOB, std.Gender, std.ClassName, std.CreatedAt, std.UpdatedAt}
}

func (repo studentRepository) StudentExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Select("COUNT(*)").From(studentTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var count int
	if err = sqlx.GetContext(ctx, ex, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "counting students")
	}
	return count > 0, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Insert(studentTable).Columns(studentColumns...).Values(studentValues(std)...).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}

	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return student.Student{}, student.ErrIDExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) UpsertStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Insert(studentTable).
		Columns(studentColumns...).
		Values(studentValues(std)...).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			dob = excluded.dob,
			gender = excluded.gender,
			class_name = excluded.class_name,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}

	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		return student.Student{}, errors.Wrap(err, "upserting student")
	}
	return repo.GetStudent(ctx, std.ID, ex)
}

func (repo studentRepository) QueryStudents(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]student.Student, error) {
	ex := repo.getExec(exec...)
	qb := builder(ex).Select(studentColumns...).From(studentTable)

	if filter != nil {
		if filter.Search != "" {
			qb = qb.Where(search(filter.Search, "id", "first_name", "last_name", "class_name"))
		}
		if filter.Gender != "" {
			qb = qb.Where(sq.Eq{"gender": filter.Gender})
		}
		if filter.ClassName != "" {
			qb = qb.Where(sq.Eq{"class_name": filter.ClassName})
		}
	}
	qb = qb.OrderBy(orderBy(ordering, studentOrderings, "class_name ASC", "last_name ASC", "first_name ASC")...)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	students := make([]student.Student, 0)
	if err = sqlx.SelectContext(ctx, ex, &students, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Select(studentColumns...).From(studentTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}

	var std student.Student
	if err = sqlx.GetContext(ctx, ex, &std, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "selecting student")
	}
	return std, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Update(studentTable).
		SetMap(map[string]interface{}{
			"first_name": std.FirstName,
			"last_name":  std.LastName,
			"dob":        std.DOB,
			"gender":     std.Gender,
			"class_name": std.ClassName,
			"updated_at": std.UpdatedAt,
		}).
		Where(sq.Eq{"id": std.ID}).
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return std, nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Delete(studentTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted students")
}
