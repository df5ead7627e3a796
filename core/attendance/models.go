package attendance

import (
	"time"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
)

type ScanStatus string

const (
	StatusAccepted       ScanStatus = "accepted"
	StatusAlreadyScanned ScanStatus = "already_scanned"
	StatusUnknownStudent ScanStatus = "unknown_student"
	StatusInvalid        ScanStatus = "invalid"
)

var scanMessages = map[ScanStatus]string{
	StatusAccepted:       "checked in",
	StatusAlreadyScanned: "already checked in today",
	StatusUnknownStudent: "student not registered",
	StatusInvalid:        "empty scan payload",
}

// Record is a student's attendance for a day. There is at most one per (StudentID, Date).
type Record struct {
	StudentID string    `json:"student_id" db:"student_id"`
	Date      core.Date `json:"date" db:"date"`
	ScannedAt time.Time `json:"scanned_at" db:"scanned_at"` // UTC
}

// Entry is a Record along with the student's details.
type Entry struct {
	Record
	FirstName string         `json:"first_name" db:"first_name"`
	LastName  string         `json:"last_name" db:"last_name"`
	Gender    student.Gender `json:"gender" db:"gender"`
	ClassName string         `json:"class_name" db:"class_name"`
}

type ScanResult struct {
	Status   ScanStatus       `json:"status"`
	Accepted bool             `json:"accepted"`
	Message  string           `json:"message"`
	Student  *student.Student `json:"student,omitempty"`
	Record   *Record          `json:"record,omitempty"`
}

func newScanResult(status ScanStatus, std *student.Student, rec *Record) ScanResult {
	return ScanResult{
		Status:   status,
		Accepted: status == StatusAccepted,
		Message:  scanMessages[status],
		Student:  std,
		Record:   rec,
	}
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Date      core.Date `query:"date"`
	From      core.Date `query:"from"`
	To        core.Date `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Date.IsZero() && qf.From.IsZero() && qf.To.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
}

type GenderStats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// DailyStats is the present/absent breakdown of the registered students for a day.
type DailyStats struct {
	Date      core.Date                            `json:"date"`
	Total     int                                  `json:"total"`
	Present   int                                  `json:"present"`
	Absent    int                                  `json:"absent"`
	ByGender  map[student.Gender]GenderStats       `json:"by_gender"`
	Absentees map[student.Gender][]student.Student `json:"absentees"`
}

// Absentees lists the students without any attendance in [From, AsOf].
type Absentees struct {
	AsOf     core.Date         `json:"as_of"`
	From     core.Date         `json:"from"`
	Days     int               `json:"days"`
	Students []student.Student `json:"students"`
}
