// Package report renders the attendance documents: PDF reports, CSV exports and QR badges.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
)

const (
	DefaultBadgeSize = 256 // px

	fontFamily = "Helvetica"
	lineHeight = 7.0 // mm

	// badge sheet layout (mm, A4 portrait)
	sheetMargin  = 10.0
	badgeCols    = 3
	badgeRows    = 4
	badgeQRSize  = 45.0
	badgeCaption = 5.0
)

var genderLabels = map[student.Gender]string{
	student.GenderMale:   "Male",
	student.GenderFemale: "Female",
}

func genderLabel(g student.Gender) string {
	if label, ok := genderLabels[g]; ok {
		return label
	}
	if g == "" {
		return "Unknown"
	}
	return string(g)
}

// sortedGenders lists M and F first, then any other gender found in keys.
func sortedGenders(keys map[student.Gender]attendance.GenderStats) []student.Gender {
	genders := append([]student.Gender{}, student.Genders...)
	others := make([]student.Gender, 0)
	for g := range keys {
		if !g.IsValid() {
			others = append(others, g)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
	return append(genders, others...)
}

type Generator struct {
	appName string
	nowFunc func() time.Time
}

func NewGenerator(conf *core.Config) *Generator {
	return &Generator{appName: conf.AppName, nowFunc: time.Now}
}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (gen *Generator) newDocument(title string) document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor(gen.appName, true)
	pdf.SetCreationDate(gen.nowFunc())
	pdf.SetMargins(sheetMargin, sheetMargin, sheetMargin)
	pdf.SetAutoPageBreak(true, sheetMargin)
	doc := document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	doc.SetFooterFunc(func() {
		doc.SetY(-sheetMargin)
		doc.SetFont(fontFamily, "I", 8)
		doc.CellFormat(0, 5, doc.tr(fmt.Sprintf("%s - page %d", gen.appName, doc.PageNo())), "", 0, "C", false, 0, "")
	})
	return doc
}

func (doc document) heading(text string) {
	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, doc.tr(text), "", 1, "L", false, 0, "")
	doc.Ln(2)
}

func (doc document) subheading(text string) {
	doc.Ln(3)
	doc.SetFont(fontFamily, "B", 12)
	doc.CellFormat(0, lineHeight+1, doc.tr(text), "B", 1, "L", false, 0, "")
	doc.Ln(1)
}

func (doc document) line(text string) {
	doc.SetFont(fontFamily, "", 11)
	doc.CellFormat(0, lineHeight, doc.tr(text), "", 1, "L", false, 0, "")
}

func (doc document) studentLines(students []student.Student) {
	if len(students) == 0 {
		doc.line("None")
		return
	}
	for _, std := range students {
		doc.line(fmt.Sprintf("- %s (%s)", std.FullName(), std.ClassName))
	}
}

func (doc document) output(w io.Writer) error {
	if err := doc.Error(); err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return errors.Wrap(doc.Output(w), "writing pdf")
}

// DailyPDF writes the daily report: summary counts then the absent students by gender.
func (gen *Generator) DailyPDF(w io.Writer, stats attendance.DailyStats) error {
	title := "Canteen Report - " + stats.Date.String()
	doc := gen.newDocument(title)
	doc.AddPage()
	doc.heading(title)

	doc.line(fmt.Sprintf("Date: %s", stats.Date))
	doc.line(fmt.Sprintf("Registered students: %d", stats.Total))
	doc.line(fmt.Sprintf(
		"Present: %d (M: %d | F: %d)",
		stats.Present, stats.ByGender[student.GenderMale].Present, stats.ByGender[student.GenderFemale].Present,
	))
	doc.line(fmt.Sprintf(
		"Absent: %d (M: %d | F: %d)",
		stats.Absent, stats.ByGender[student.GenderMale].Absent, stats.ByGender[student.GenderFemale].Absent,
	))

	for _, g := range sortedGenders(stats.ByGender) {
		absentees, ok := stats.Absentees[g]
		if !ok {
			continue
		}
		doc.subheading(fmt.Sprintf("Absent - %s (%d)", genderLabel(g), len(absentees)))
		doc.studentLines(absentees)
	}
	return doc.output(w)
}

// AbsenteesPDF writes the students without any attendance in [abs.From, abs.AsOf].
func (gen *Generator) AbsenteesPDF(w io.Writer, abs attendance.Absentees) error {
	title := fmt.Sprintf("Absent for %d days - %s", abs.Days, abs.AsOf)
	doc := gen.newDocument(title)
	doc.AddPage()
	doc.heading(title)

	doc.line(fmt.Sprintf("No attendance from %s to %s", abs.From, abs.AsOf))
	doc.line(fmt.Sprintf("Students: %d", len(abs.Students)))

	var class string
	for i, std := range abs.Students {
		if i == 0 || std.ClassName != class {
			class = std.ClassName
			label := class
			if label == "" {
				label = "No class"
			}
			doc.subheading(label)
		}
		doc.line(fmt.Sprintf("- %s (%s, %s)", std.FullName(), std.ID, genderLabel(std.Gender)))
	}
	if len(abs.Students) == 0 {
		doc.Ln(3)
		doc.line("None")
	}
	return doc.output(w)
}

// Badge encodes the student ID as a PNG QR code of size x size pixels.
func Badge(std student.Student, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultBadgeSize
	}
	png, err := qrcode.Encode(std.ID, qrcode.Medium, size)
	return png, errors.Wrapf(err, "encoding badge for %s", std.ID)
}

// BadgeSheetPDF lays out the students' badges on A4 pages, ready to be printed and cut.
func (gen *Generator) BadgeSheetPDF(w io.Writer, students []student.Student) error {
	doc := gen.newDocument(gen.appName + " - Badges")
	doc.SetAutoPageBreak(false, 0)

	pageW, pageH := doc.GetPageSize()
	cellW := (pageW - 2*sheetMargin) / badgeCols
	cellH := (pageH - 2*sheetMargin) / badgeRows
	opts := fpdf.ImageOptions{ImageType: "PNG"}

	for i, std := range students {
		pos := i % (badgeCols * badgeRows)
		if pos == 0 {
			doc.AddPage()
		}
		x := sheetMargin + float64(pos%badgeCols)*cellW
		y := sheetMargin + float64(pos/badgeCols)*cellH

		png, err := Badge(std, DefaultBadgeSize)
		if err != nil {
			return err
		}
		name := "badge-" + strconv.Itoa(i)
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))

		doc.SetDrawColor(200, 200, 200)
		doc.Rect(x, y, cellW, cellH, "D")
		doc.ImageOptions(name, x+(cellW-badgeQRSize)/2, y+4, badgeQRSize, badgeQRSize, false, opts, 0, "")

		doc.SetXY(x, y+badgeQRSize+6)
		doc.SetFont(fontFamily, "B", 10)
		doc.CellFormat(cellW, badgeCaption, doc.tr(std.FullName()), "", 2, "C", false, 0, "")
		doc.SetFont(fontFamily, "", 9)
		doc.CellFormat(cellW, badgeCaption, doc.tr(std.ID+"  "+std.ClassName), "", 0, "C", false, 0, "")
	}
	if len(students) == 0 {
		doc.AddPage()
		doc.heading("No students")
	}
	return doc.output(w)
}

var (
	attendanceCSVHeader = []string{"date", "student_id", "first_name", "last_name", "gender", "class_name", "scanned_at"}
	statsCSVHeader      = []string{"gender", "total", "present", "absent"}
)

// AttendanceCSV writes one row per attendance entry.
func AttendanceCSV(w io.Writer, entries []attendance.Entry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(attendanceCSVHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, e := range entries {
		row := []string{
			e.Date.String(),
			e.StudentID,
			e.FirstName,
			e.LastName,
			string(e.Gender),
			e.ClassName,
			e.ScannedAt.In(loc).Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// DailyStatsCSV writes the per-gender counts followed by a TOTAL row.
func DailyStatsCSV(w io.Writer, stats attendance.DailyStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsCSVHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	itoa := strconv.Itoa
	for _, g := range sortedGenders(stats.ByGender) {
		gs, ok := stats.ByGender[g]
		if !ok {
			continue
		}
		if err := cw.Write([]string{string(g), itoa(gs.Total), itoa(gs.Present), itoa(gs.Absent)}); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	if err := cw.Write([]string{"TOTAL", itoa(stats.Total), itoa(stats.Present), itoa(stats.Absent)}); err != nil {
		return errors.Wrap(err, "writing csv row")
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
