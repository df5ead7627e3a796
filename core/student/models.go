package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/canteen/core"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

var Genders = []Gender{GenderMale, GenderFemale}

// ParseGender normalises user input ("m", "F", "male", "ذكر"...) to a Gender.
// Unknown values are returned upper-cased so validation can reject them.
func ParseGender(s string) Gender {
	s = strings.ToUpper(core.CleanString(s))
	switch s {
	case "M", "MALE", "ذ", "ذكر":
		return GenderMale
	case "F", "FEMALE", "إ", "أنثى", "انثى":
		return GenderFemale
	default:
		return Gender(s)
	}
}

func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

type Student struct {
	ID        string      `json:"id" db:"id"` // content of the student's QR code
	FirstName string      `json:"first_name" db:"first_name"`
	LastName  string      `json:"last_name" db:"last_name"`
	DOB       null.String `json:"dob" db:"dob"` // free text; usually a year or YYYY-MM-DD
	Gender    Gender      `json:"gender" db:"gender"`
	ClassName string      `json:"class_name" db:"class_name"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	ID        string `json:"id" validate:"required,notblank,max=64"`
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	DOB       string `json:"dob" validate:"max=20"`
	Gender    string `json:"gender" validate:"required,gender"`
	ClassName string `json:"class_name" validate:"max=50"`
}

func (ns *NewStudent) Clean() {
	ns.ID = core.CleanString(ns.ID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.DOB = core.CleanString(ns.DOB)
	ns.Gender = string(ParseGender(ns.Gender))
	ns.ClassName = core.CleanString(ns.ClassName)
}

// Validate cleans and validates the NewStudent.
// The ID uniqueness is checked unless svc is nil (imports overwrite existing students).
func (ns *NewStudent) Validate(validate *validator.Validate, svc Service) error {
	ns.Clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	return svc.CheckIDUniqueness(ns.ID)
}

func (ns NewStudent) student() Student {
	return Student{
		ID:        ns.ID,
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		DOB:       null.NewString(ns.DOB, ns.DOB != ""),
		Gender:    Gender(ns.Gender),
		ClassName: ns.ClassName,
	}
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their current value.
type UpdateStudent struct {
	FirstName string  `json:"first_name" validate:"max=100"`
	LastName  string  `json:"last_name" validate:"max=100"`
	DOB       *string `json:"dob" validate:"omitempty,max=20"`
	Gender    string  `json:"gender" validate:"omitempty,gender"`
	ClassName *string `json:"class_name" validate:"omitempty,max=50"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	if us.Gender != "" {
		us.Gender = string(ParseGender(us.Gender))
	}
	if us.DOB != nil {
		dob := core.CleanString(*us.DOB)
		us.DOB = &dob
	}
	if us.ClassName != nil {
		class := core.CleanString(*us.ClassName)
		us.ClassName = &class
	}
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s Student) Student {
	if us.FirstName != "" {
		s.FirstName = us.FirstName
	}
	if us.LastName != "" {
		s.LastName = us.LastName
	}
	if us.DOB != nil {
		s.DOB = null.NewString(*us.DOB, *us.DOB != "")
	}
	if us.Gender != "" {
		s.Gender = Gender(us.Gender)
	}
	if us.ClassName != nil {
		s.ClassName = *us.ClassName
	}
	return s
}

type QueryFilter struct {
	Search    string `query:"search"`
	Gender    string `query:"gender"`
	ClassName string `query:"class"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Gender == "" && qf.ClassName == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.Gender != "" {
		qf.Gender = string(ParseGender(qf.Gender))
	}
	qf.ClassName = core.CleanString(qf.ClassName)
}
