package report

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
)

var (
	ahmad = student.Student{ID: "1001", FirstName: "Ahmad", LastName: "Ali", Gender: student.GenderMale, ClassName: "1A"}
	sara  = student.Student{ID: "1002", FirstName: "Sara", LastName: "Mounir", Gender: student.GenderFemale, ClassName: "1A"}
	omar  = student.Student{ID: "1003", FirstName: "Omar", LastName: "Khaled", Gender: student.GenderMale, ClassName: "2B"}
)

func newTestGenerator() *Generator {
	gen := NewGenerator(&core.Config{AppName: "Canteen"})
	gen.nowFunc = func() time.Time { return time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC) }
	return gen
}

func testStats() attendance.DailyStats {
	return attendance.DailyStats{
		Date:    core.NewDate(2024, 3, 4),
		Total:   4,
		Present: 1,
		Absent:  3,
		ByGender: map[student.Gender]attendance.GenderStats{
			student.GenderMale:   {Total: 2, Present: 1, Absent: 1},
			student.GenderFemale: {Total: 1, Present: 0, Absent: 1},
			"X":                  {Total: 1, Present: 0, Absent: 1},
		},
		Absentees: map[student.Gender][]student.Student{
			student.GenderMale:   {omar},
			student.GenderFemale: {sara},
			"X":                  {{ID: "1004", FirstName: "Alex", LastName: "Doe", Gender: "X"}},
		},
	}
}

func assertPDF(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	require.True(t, buf.Len() > 0, "empty pdf")
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")), "not a pdf")
	assert.True(t, bytes.Contains(buf.Bytes(), []byte("%%EOF")), "truncated pdf")
}

func Test_genderLabel(t *testing.T) {
	assert.Equal(t, "Male", genderLabel(student.GenderMale))
	assert.Equal(t, "Female", genderLabel(student.GenderFemale))
	assert.Equal(t, "Unknown", genderLabel(""))
	assert.Equal(t, "X", genderLabel("X"))
}

func Test_sortedGenders(t *testing.T) {
	got := sortedGenders(map[student.Gender]attendance.GenderStats{"Z": {}, student.GenderFemale: {}, "X": {}})
	assert.Equal(t, []student.Gender{student.GenderMale, student.GenderFemale, "X", "Z"}, got)

	got = sortedGenders(nil)
	assert.Equal(t, []student.Gender{student.GenderMale, student.GenderFemale}, got)
}

func TestGenerator_DailyPDF(t *testing.T) {
	gen := newTestGenerator()

	var buf bytes.Buffer
	require.NoError(t, gen.DailyPDF(&buf, testStats()))
	assertPDF(t, &buf)

	buf.Reset()
	require.NoError(t, gen.DailyPDF(&buf, attendance.DailyStats{Date: core.NewDate(2024, 3, 4)}))
	assertPDF(t, &buf)
}

func TestGenerator_AbsenteesPDF(t *testing.T) {
	gen := newTestGenerator()
	asOf := core.NewDate(2024, 3, 4)

	tests := []struct {
		name     string
		students []student.Student
	}{
		{name: "grouped by class", students: []student.Student{ahmad, sara, omar}},
		{name: "no class", students: []student.Student{{ID: "1005", FirstName: "Nour", LastName: "Saleh", Gender: student.GenderFemale}}},
		{name: "nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			abs := attendance.Absentees{AsOf: asOf, From: asOf.AddDays(-15), Days: 15, Students: tt.students}
			require.NoError(t, gen.AbsenteesPDF(&buf, abs))
			assertPDF(t, &buf)
		})
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		wantSize int
	}{
		{name: "default size", size: 0, wantSize: DefaultBadgeSize},
		{name: "custom size", size: 128, wantSize: 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Badge(ahmad, tt.size)
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, img.Bounds().Dx())
			assert.Equal(t, tt.wantSize, img.Bounds().Dy())
		})
	}
}

func TestGenerator_BadgeSheetPDF(t *testing.T) {
	gen := newTestGenerator()

	// more than a page worth of badges
	students := make([]student.Student, 0, badgeCols*badgeRows+2)
	for i := 0; i < cap(students); i++ {
		std := ahmad
		std.ID = std.ID + string(rune('a'+i))
		students = append(students, std)
	}

	var buf bytes.Buffer
	require.NoError(t, gen.BadgeSheetPDF(&buf, students))
	assertPDF(t, &buf)

	buf.Reset()
	require.NoError(t, gen.BadgeSheetPDF(&buf, nil))
	assertPDF(t, &buf)
}

func TestAttendanceCSV(t *testing.T) {
	scannedAt := time.Date(2024, 3, 4, 11, 30, 0, 0, time.UTC)
	entries := []attendance.Entry{
		{
			Record:    attendance.Record{StudentID: "1002", Date: core.NewDate(2024, 3, 4), ScannedAt: scannedAt},
			FirstName: "Sara", LastName: "Mounir", Gender: student.GenderFemale, ClassName: "1A",
		},
		{
			Record:    attendance.Record{StudentID: "1001", Date: core.NewDate(2024, 3, 4), ScannedAt: scannedAt.Add(-time.Hour)},
			FirstName: "Ahmad", LastName: "Ali, Jr", Gender: student.GenderMale, ClassName: "1A",
		},
	}

	tests := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{
			name: "utc",
			want: "date,student_id,first_name,last_name,gender,class_name,scanned_at\n" +
				"2024-03-04,1002,Sara,Mounir,F,1A,2024-03-04T11:30:00Z\n" +
				"2024-03-04,1001,Ahmad,\"Ali, Jr\",M,1A,2024-03-04T10:30:00Z\n",
		},
		{
			name: "local time",
			loc:  time.FixedZone("UTC+3", 3*60*60),
			want: "date,student_id,first_name,last_name,gender,class_name,scanned_at\n" +
				"2024-03-04,1002,Sara,Mounir,F,1A,2024-03-04T14:30:00+03:00\n" +
				"2024-03-04,1001,Ahmad,\"Ali, Jr\",M,1A,2024-03-04T13:30:00+03:00\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, AttendanceCSV(&buf, entries, tt.loc))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	var buf bytes.Buffer
	require.NoError(t, AttendanceCSV(&buf, nil, nil))
	assert.Equal(t, "date,student_id,first_name,last_name,gender,class_name,scanned_at\n", buf.String())
}

func TestDailyStatsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DailyStatsCSV(&buf, testStats()))
	assert.Equal(t, "gender,total,present,absent\nM,2,1,1\nF,1,0,1\nX,1,0,1\nTOTAL,4,1,3\n", buf.String())

	buf.Reset()
	require.NoError(t, DailyStatsCSV(&buf, attendance.DailyStats{}))
	assert.Equal(t, "gender,total,present,absent\nTOTAL,0,0,0\n", buf.String())
}
