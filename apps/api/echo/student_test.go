package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/student"
	testutil "github.com/trezcool/canteen/tests"
)

func (app testApp) demoStudents(t *testing.T) (s1, s2, s3 student.Student) {
	s1 = testutil.CreateStudent(t, app.stdRepo, "1001", "Ahmad", "Ali", student.GenderMale, "1A")
	s2 = testutil.CreateStudent(t, app.stdRepo, "1002", "Sara", "Mounir", student.GenderFemale, "1A")
	s3 = testutil.CreateStudent(t, app.stdRepo, "1003", "Omar", "Khaled", student.GenderMale, "2B")
	return s1, s2, s3
}

func Test_studentApi_query(t *testing.T) {
	app := setup(t)

	staff, _ := app.staffAndAdmin(t)
	s1, s2, s3 := app.demoStudents(t)
	token := app.token(t, staff)

	tests := []httpTest{
		{name: "Auth required", path: "/api/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/api/students", token: token, wantData: marchallList(t, s1, s2, s3)},
		{name: "search (unknown)", path: "/api/students?search=lol", token: token, wantData: marchallList(t)},
		{name: "search=MOU", path: "/api/students?search=MOU", token: token, wantData: marchallList(t, s2)},
		{name: "search by id", path: "/api/students?search=1003", token: token, wantData: marchallList(t, s3)},
		{name: "gender=f", path: "/api/students?gender=f", token: token, wantData: marchallList(t, s2)},
		{name: "class=2B", path: "/api/students?class=2B", token: token, wantData: marchallList(t, s3)},
		{name: "gender & class", path: "/api/students?gender=M&class=1A", token: token, wantData: marchallList(t, s1)},
		{name: "order by -id", path: "/api/students?ordering=-id", token: token, wantData: marchallList(t, s3, s2, s1)},
		{name: "order by first_name", path: "/api/students?ordering=first_name", token: token, wantData: marchallList(t, s1, s3, s2)},
	}
	runHTTPTests(t, app, tests)
}

func Test_studentApi_create(t *testing.T) {
	app := setup(t)

	staff, admin := app.staffAndAdmin(t)
	app.demoStudents(t)
	adminToken := app.token(t, admin)
	reqMsg := "this field is required"

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/api/students", token: app.token(t, staff), wantCode: http.StatusForbidden,
			body: marchallObj(t, student.NewStudent{ID: "2001", FirstName: "Lina", LastName: "Haddad", Gender: "F"}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/students", token: adminToken, body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"id": reqMsg, "first_name": reqMsg, "last_name": reqMsg, "gender": reqMsg}),
		},
		{
			name: "invalid gender", method: http.MethodPost, path: "/api/students", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, student.NewStudent{ID: "2001", FirstName: "Lina", LastName: "Haddad", Gender: "X"}),
			wantData: marchallObj(t, map[string]string{"gender": "gender must be one of M or F"}),
		},
		{
			name: "duplicate id", method: http.MethodPost, path: "/api/students", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, student.NewStudent{ID: " 1001 ", FirstName: "Lina", LastName: "Haddad", Gender: "F"}),
			wantData: marchallObj(t, map[string]string{"id": student.ErrIDExists.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("created", func(t *testing.T) {
		body := marchallObj(t, student.NewStudent{ID: " 2001 ", FirstName: " Lina ", LastName: "Haddad", DOB: "2011-04-02", Gender: "female", ClassName: "3C"})
		rec := app.serve(newAuthRequest(http.MethodPost, "/api/students", adminToken, body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "2001", created.ID)
		assert.Equal(t, "Lina", created.FirstName)
		assert.Equal(t, student.GenderFemale, created.Gender)
		assert.Equal(t, "2011-04-02", created.DOB.String)
		assert.Equal(t, "3C", created.ClassName)

		got := app.serve(newAuthRequest(http.MethodGet, "/api/students/2001", adminToken))
		assert.Equal(t, http.StatusOK, got.Code)
	})
}

func Test_studentApi_retrieveUpdateDestroy(t *testing.T) {
	app := setup(t)

	staff, admin := app.staffAndAdmin(t)
	s1, s2, s3 := app.demoStudents(t)
	staffToken := app.token(t, staff)
	adminToken := app.token(t, admin)

	tests := []httpTest{
		{name: "retrieve", path: "/api/students/1002", token: staffToken, wantData: marchallObj(t, s2)},
		{name: "retrieve unknown", path: "/api/students/lol", token: staffToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "update: admin required", method: http.MethodPut, path: "/api/students/1001", token: staffToken,
			body: []byte(`{"class_name": "2B"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "update: invalid gender", method: http.MethodPut, path: "/api/students/1001", token: adminToken,
			body: []byte(`{"gender": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"gender": "gender must be one of M or F"}),
		},
		{name: "destroy: admin required", method: http.MethodDelete, path: "/api/students/1003", token: staffToken, wantCode: http.StatusForbidden},
		{name: "destroy", method: http.MethodDelete, path: "/api/students/1003", token: adminToken, wantCode: http.StatusNoContent},
		{name: "destroyed", path: "/api/students/1003", token: adminToken, wantCode: http.StatusNotFound},
		{name: "destroy multiple", method: http.MethodDelete, path: "/api/students?id=1002&id=lol", token: adminToken, wantCode: http.StatusNoContent},
	}
	runHTTPTests(t, app, tests)

	t.Run("update", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPut, "/api/students/1001", adminToken, []byte(`{"class_name": " 2B ", "dob": ""}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var updated student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, s1.ID, updated.ID)
		assert.Equal(t, s1.FirstName, updated.FirstName)
		assert.Equal(t, "2B", updated.ClassName)
		assert.False(t, updated.DOB.Valid)
	})

	t.Run("remaining", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodGet, "/api/students", adminToken))
		require.Equal(t, http.StatusOK, rec.Code)

		var students []student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
		require.Len(t, students, 1)
		assert.Equal(t, s1.ID, students[0].ID)
		assert.NotEqual(t, s3.ID, students[0].ID)
	})
}

func Test_studentApi_import(t *testing.T) {
	app := setup(t)

	staff, admin := app.staffAndAdmin(t)
	app.demoStudents(t)
	adminToken := app.token(t, admin)

	csvFile := []byte("id,first_name,last_name,dob,gender,class_name\n" +
		"2001,Lina,Haddad,2011,F,3C\n" +
		"2002,,Nasser,2011,M,3C\n" +
		"\n" +
		"1001,Ahmad,Ali Updated,2010,m,1A\n")

	t.Run("admin required", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/api/students/import", app.token(t, staff), "students.csv", csvFile))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("file required", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPost, "/api/students/import", adminToken))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "a .csv or .xlsx file is required"}),
		}, rec)
	})

	t.Run("unsupported format", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/api/students/import", adminToken, "students.pdf", csvFile))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: student.ErrUnsupportedFormat.Error()}),
		}, rec)
	})

	t.Run("empty file", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/api/students/import", adminToken, "students.csv", nil))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: student.ErrEmptyFile.Error()}),
		}, rec)
	})

	t.Run("imported", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/api/students/import", adminToken, "students.csv", csvFile))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student.ImportResult{
				Imported: 2,
				Failed:   []student.RowError{{Row: 3, ID: "2002", Errors: map[string]string{"first_name": "this field is required"}}},
			}),
		}, rec)

		rec = app.serve(newAuthRequest(http.MethodGet, "/api/students/1001", adminToken))
		var updated student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "Ali Updated", updated.LastName)

		rec = app.serve(newAuthRequest(http.MethodGet, "/api/students/2001", adminToken))
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = app.serve(newAuthRequest(http.MethodGet, "/api/students/2002", adminToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_studentApi_badges(t *testing.T) {
	app := setup(t)

	staff, _ := app.staffAndAdmin(t)
	app.demoStudents(t)
	token := app.token(t, staff)

	t.Run("badge", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodGet, "/api/students/1001/badge.png?size=128", token))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("badge of unknown student", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodGet, "/api/students/lol/badge.png", token))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("badge sheet", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodGet, "/api/students/badges.pdf?class=1A", token))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "badges.pdf")
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})
}

func Test_studentApi_history(t *testing.T) {
	app := setup(t)

	staff, _ := app.staffAndAdmin(t)
	s1, s2, _ := app.demoStudents(t)
	token := app.token(t, staff)

	d1 := core.NewDate(2024, 3, 4)
	d2 := d1.AddDays(1)
	d3 := d1.AddDays(2)
	r1 := testutil.CreateRecord(t, app.attRepo, s1.ID, d1)
	r2 := testutil.CreateRecord(t, app.attRepo, s1.ID, d2)
	r3 := testutil.CreateRecord(t, app.attRepo, s1.ID, d3)
	testutil.CreateRecord(t, app.attRepo, s2.ID, d2)

	path := "/api/students/1001/attendance"
	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized},
		{name: "all", path: path, token: token, wantData: marchallList(t, r1, r2, r3)},
		{name: "from", path: path + "?from=" + d2.String(), token: token, wantData: marchallList(t, r2, r3)},
		{name: "to", path: path + "?to=" + d2.String(), token: token, wantData: marchallList(t, r1, r2)},
		{name: "from - to", path: path + "?from=" + d2.String() + "&to=" + d2.String(), token: token, wantData: marchallList(t, r2)},
		{
			name: "invalid date", path: path + "?from=lol", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: core.ErrInvalidDate.Error()}),
		},
		{
			name: "to before from", path: path + "?from=" + d3.String() + "&to=" + d1.String(), token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"from": "from must be before to"}),
		},
		{name: "no attendance", path: "/api/students/1003/attendance", token: token, wantData: marchallList(t)},
		{name: "unknown student", path: "/api/students/lol/attendance", token: token, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, app, tests)
}
