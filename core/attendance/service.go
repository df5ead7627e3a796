package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance record not found")
	ErrAlreadyRecorded = errors.New("attendance already recorded for this day")
	ErrInvalidWindow   = errors.New("days must be greater than 0")
	ErrInvalidRange    = errors.New("from must be before to")
)

type (
	Repository interface {
		// CreateRecord returns ErrAlreadyRecorded if the student already has a record for rec.Date.
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (Record, error)
		// QueryRecords returns the records of registered students, latest first.
		QueryRecords(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Entry, error)
		PresentStudentIDs(ctx context.Context, date core.Date, exec ...core.DBExecutor) ([]string, error)
		// QueryAbsentStudents returns the students without any record between from and to (inclusive).
		QueryAbsentStudents(ctx context.Context, from, to core.Date, exec ...core.DBExecutor) ([]student.Student, error)
		DeleteRecord(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// Today is the current day in the canteen's time zone.
		Today() core.Date
		// Scan checks in the student identified by payload for today.
		// Rejections are reported through ScanResult.Status, not as errors.
		Scan(ctx context.Context, payload string) (ScanResult, error)
		DailyStats(ctx context.Context, date core.Date) (DailyStats, error)
		// LongAbsentees lists the students with no attendance during the `days` days before asOf, and asOf itself.
		// days <= 0 uses the configured window.
		LongAbsentees(ctx context.Context, asOf core.Date, days int) (Absentees, error)
		History(ctx context.Context, studentID string, from, to core.Date) ([]Record, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Entry, error)
		Delete(ctx context.Context, studentID string, date core.Date) error
	}

	service struct {
		stdRepo    student.Repository
		repo       Repository
		loc        *time.Location
		windowDays int
		nowFunc    func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(stdRepo student.Repository, repo Repository, conf *core.Config) Service {
	return newService(stdRepo, repo, conf, time.Now)
}

func newService(stdRepo student.Repository, repo Repository, conf *core.Config, nowFunc func() time.Time) *service {
	return &service{
		stdRepo:    stdRepo,
		repo:       repo,
		loc:        conf.Canteen.Location,
		windowDays: conf.Canteen.AbsenceWindowDays,
		nowFunc:    nowFunc,
	}
}

func (svc *service) Today() core.Date {
	return core.Today(svc.nowFunc(), svc.loc)
}

func (svc *service) Scan(ctx context.Context, payload string) (ScanResult, error) {
	id := core.CleanString(payload)
	if id == "" {
		return newScanResult(StatusInvalid, nil, nil), nil
	}

	std, err := svc.stdRepo.GetStudent(ctx, id)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return newScanResult(StatusUnknownStudent, nil, nil), nil
		}
		return ScanResult{}, errors.Wrap(err, "finding student")
	}

	now := svc.nowFunc()
	rec, err := svc.repo.CreateRecord(ctx, Record{
		StudentID: std.ID,
		Date:      core.Today(now, svc.loc),
		ScannedAt: now.UTC(),
	})
	if err == nil {
		return newScanResult(StatusAccepted, &std, &rec), nil
	}
	if errors.Cause(err) != ErrAlreadyRecorded {
		return ScanResult{}, errors.Wrap(err, "recording attendance")
	}

	existing, err := svc.repo.GetRecord(ctx, std.ID, core.Today(now, svc.loc))
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "finding existing attendance")
	}
	return newScanResult(StatusAlreadyScanned, &std, &existing), nil
}

func (svc *service) DailyStats(ctx context.Context, date core.Date) (DailyStats, error) {
	if date.IsZero() {
		date = svc.Today()
	}

	students, err := svc.stdRepo.QueryStudents(ctx, nil, []core.DBOrdering{
		{Field: "last_name", Ascending: true},
		{Field: "first_name", Ascending: true},
	})
	if err != nil {
		return DailyStats{}, errors.Wrap(err, "querying students")
	}
	presentIDs, err := svc.repo.PresentStudentIDs(ctx, date)
	if err != nil {
		return DailyStats{}, errors.Wrap(err, "querying present students")
	}
	return ComputeDailyStats(date, students, presentIDs), nil
}

// ComputeDailyStats counts the present and absent students by gender.
// IDs in presentIDs that are not in students are ignored.
func ComputeDailyStats(date core.Date, students []student.Student, presentIDs []string) DailyStats {
	present := make(map[string]struct{}, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = struct{}{}
	}

	stats := DailyStats{
		Date:      date,
		ByGender:  make(map[student.Gender]GenderStats, len(student.Genders)),
		Absentees: make(map[student.Gender][]student.Student, len(student.Genders)),
	}
	for _, g := range student.Genders {
		stats.ByGender[g] = GenderStats{}
		stats.Absentees[g] = []student.Student{}
	}

	for _, std := range students {
		gs := stats.ByGender[std.Gender]
		gs.Total++
		stats.Total++
		if _, ok := present[std.ID]; ok {
			gs.Present++
			stats.Present++
		} else {
			gs.Absent++
			stats.Absent++
			stats.Absentees[std.Gender] = append(stats.Absentees[std.Gender], std)
		}
		stats.ByGender[std.Gender] = gs
	}
	return stats
}

func (svc *service) LongAbsentees(ctx context.Context, asOf core.Date, days int) (Absentees, error) {
	if days < 0 {
		return Absentees{}, core.NewValidationError(ErrInvalidWindow, core.FieldError{Field: "days", Error: ErrInvalidWindow.Error()})
	}
	if days == 0 {
		days = svc.windowDays
	}
	if asOf.IsZero() {
		asOf = svc.Today()
	}
	from := asOf.AddDays(-days)

	students, err := svc.repo.QueryAbsentStudents(ctx, from, asOf)
	if err != nil {
		return Absentees{}, errors.Wrap(err, "querying absent students")
	}
	if students == nil {
		students = []student.Student{}
	}
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].ClassName != students[j].ClassName {
			return students[i].ClassName < students[j].ClassName
		}
		return students[i].FullName() < students[j].FullName()
	})
	return Absentees{AsOf: asOf, From: from, Days: days, Students: students}, nil
}

func (svc *service) History(ctx context.Context, studentID string, from, to core.Date) ([]Record, error) {
	std, err := svc.stdRepo.GetStudent(ctx, core.CleanString(studentID))
	if err != nil {
		return nil, err
	}
	entries, err := svc.Query(ctx, &QueryFilter{StudentID: std.ID, From: from, To: to})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Entry, error) {
	if filter != nil {
		filter.Clean()
		if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
			return nil, core.NewValidationError(ErrInvalidRange, core.FieldError{Field: "from", Error: ErrInvalidRange.Error()})
		}
	}
	return svc.repo.QueryRecords(ctx, filter)
}

func (svc *service) Delete(ctx context.Context, studentID string, date core.Date) error {
	cnt, err := svc.repo.DeleteRecord(ctx, core.CleanString(studentID), date)
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}
