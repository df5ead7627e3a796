package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/storage/database"
)

const attendanceTable = "attendance"

var recordColumns = []string{"student_id", "date", "scanned_at"}

type attendanceRepository struct {
	baseRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db core.DB) attendance.Repository {
	return &attendanceRepository{baseRepository{db: db}}
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Insert(attendanceTable).
		Columns(recordColumns...).
		Values(rec.StudentID, rec.Date, rec.ScannedAt).
		ToSql()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "building query")
	}

	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrAlreadyRecorded
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance")
	}
	return rec, nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (attendance.Record, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Select(recordColumns...).
		From(attendanceTable).
		Where(sq.Eq{"student_id": studentID, "date": date}).
		ToSql()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "building query")
	}

	var rec attendance.Record
	if err = sqlx.GetContext(ctx, ex, &rec, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "selecting attendance")
	}
	return rec, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, exec ...core.DBExecutor) ([]attendance.Entry, error) {
	ex := repo.getExec(exec...)
	qb := builder(ex).
		Select("a.student_id", "a.date", "a.scanned_at", "s.first_name", "s.last_name", "s.gender", "s.class_name").
		From(attendanceTable + " a").
		Join(studentTable + " s ON s.id = a.student_id")

	if filter != nil {
		if filter.StudentID != "" {
			qb = qb.Where(sq.Eq{"a.student_id": filter.StudentID})
		}
		if !filter.Date.IsZero() {
			qb = qb.Where(sq.Eq{"a.date": filter.Date})
		}
		if !filter.From.IsZero() {
			qb = qb.Where(sq.GtOrEq{"a.date": filter.From})
		}
		if !filter.To.IsZero() {
			qb = qb.Where(sq.LtOrEq{"a.date": filter.To})
		}
	}
	query, args, err := qb.OrderBy("a.date DESC", "a.scanned_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	entries := make([]attendance.Entry, 0)
	if err = sqlx.SelectContext(ctx, ex, &entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	return entries, nil
}

func (repo attendanceRepository) PresentStudentIDs(ctx context.Context, date core.Date, exec ...core.DBExecutor) ([]string, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Select("student_id").From(attendanceTable).Where(sq.Eq{"date": date}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	ids := make([]string, 0)
	if err = sqlx.SelectContext(ctx, ex, &ids, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting present students")
	}
	return ids, nil
}

func (repo attendanceRepository) QueryAbsentStudents(ctx context.Context, from, to core.Date, exec ...core.DBExecutor) ([]student.Student, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Select(studentColumns...).
		From(studentTable).
		Where(sq.Expr(
			"NOT EXISTS (SELECT 1 FROM "+attendanceTable+" a WHERE a.student_id = "+studentTable+".id AND a.date >= ? AND a.date <= ?)",
			from, to,
		)).
		OrderBy("class_name ASC", "last_name ASC", "first_name ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	students := make([]student.Student, 0)
	if err = sqlx.SelectContext(ctx, ex, &students, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting absent students")
	}
	return students, nil
}

func (repo attendanceRepository) DeleteRecord(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Delete(attendanceTable).Where(sq.Eq{"student_id": studentID, "date": date}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted attendance")
}
