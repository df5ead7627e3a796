package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/core/student"
	"github.com/trezcool/canteen/core/user"
	sqlxrepos "github.com/trezcool/canteen/storage/database/sqlx"
	testutil "github.com/trezcool/canteen/tests"
)

type repos struct {
	db  core.DB
	std student.Repository
	att attendance.Repository
	usr user.Repository
}

func setup(t *testing.T) repos {
	t.Helper()

	db := testutil.PrepareDB(t)
	return repos{
		db:  db,
		std: sqlxrepos.NewStudentRepository(db),
		att: sqlxrepos.NewAttendanceRepository(db),
		usr: sqlxrepos.NewUserRepository(db),
	}
}

func ids(students []student.Student) []string {
	res := make([]string, 0, len(students))
	for _, std := range students {
		res = append(res, std.ID)
	}
	return res
}

func Test_studentRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	s1 := testutil.CreateStudent(t, r.std, "1001", "Ahmad", "Ali", student.GenderMale, "1A")
	testutil.CreateStudent(t, r.std, "1002", "Sara", "Mounir", student.GenderFemale, "1A")
	testutil.CreateStudent(t, r.std, "1003", "Omar", "Khaled", student.GenderMale, "2B")

	t.Run("exists", func(t *testing.T) {
		ok, err := r.std.StudentExists(ctx, "1001")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.std.StudentExists(ctx, "9999")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := r.std.CreateStudent(ctx, s1)
		assert.Equal(t, student.ErrIDExists, err)
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name     string
			filter   *student.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "default ordering", want: []string{"1001", "1002", "1003"}},
			{name: "search", filter: &student.QueryFilter{Search: "kha"}, want: []string{"1003"}},
			{name: "search id", filter: &student.QueryFilter{Search: "100"}, want: []string{"1001", "1002", "1003"}},
			{name: "gender", filter: &student.QueryFilter{Gender: "F"}, want: []string{"1002"}},
			{name: "class", filter: &student.QueryFilter{ClassName: "1A"}, want: []string{"1001", "1002"}},
			{name: "ordering", ordering: []core.DBOrdering{{Field: "first_name", Ascending: false}}, want: []string{"1002", "1003", "1001"}},
			{name: "unknown ordering field", ordering: []core.DBOrdering{{Field: "password"}}, want: []string{"1001", "1002", "1003"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := r.std.QueryStudents(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	})

	t.Run("upsert", func(t *testing.T) {
		std := s1
		std.LastName = "Ali-Hassan"
		got, err := r.std.UpsertStudent(ctx, std)
		require.NoError(t, err)
		assert.Equal(t, "Ali-Hassan", got.LastName)

		std.ID = "1004"
		_, err = r.std.UpsertStudent(ctx, std)
		require.NoError(t, err)
		ok, err := r.std.StudentExists(ctx, "1004")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("update", func(t *testing.T) {
		std := s1
		std.ClassName = "3C"
		_, err := r.std.UpdateStudent(ctx, std)
		require.NoError(t, err)

		got, err := r.std.GetStudent(ctx, "1001")
		require.NoError(t, err)
		assert.Equal(t, "3C", got.ClassName)

		std.ID = "9999"
		_, err = r.std.UpdateStudent(ctx, std)
		assert.Equal(t, student.ErrNotFound, err)
	})

	t.Run("delete cascades", func(t *testing.T) {
		testutil.CreateRecord(t, r.att, "1002", core.NewDate(2024, 3, 4))

		cnt, err := r.std.DeleteStudentsByID(ctx, []string{"1002", "9999"})
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)

		_, err = r.std.GetStudent(ctx, "1002")
		assert.Equal(t, student.ErrNotFound, err)
		_, err = r.att.GetRecord(ctx, "1002", core.NewDate(2024, 3, 4))
		assert.Equal(t, attendance.ErrNotFound, err)
	})
}

func Test_attendanceRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	testutil.CreateStudent(t, r.std, "1001", "Ahmad", "Ali", student.GenderMale, "1A")
	testutil.CreateStudent(t, r.std, "1002", "Sara", "Mounir", student.GenderFemale, "1A")
	testutil.CreateStudent(t, r.std, "1003", "Omar", "Khaled", student.GenderMale, "2B")

	d := core.NewDate(2024, 3, 4)
	testutil.CreateRecord(t, r.att, "1001", d)
	testutil.CreateRecord(t, r.att, "1002", d, d.Time().Add(13*time.Hour))
	testutil.CreateRecord(t, r.att, "1001", d.AddDays(1))
	testutil.CreateRecord(t, r.att, "1003", d.AddDays(-7))

	t.Run("one record per student and day", func(t *testing.T) {
		_, err := r.att.CreateRecord(ctx, attendance.Record{StudentID: "1001", Date: d, ScannedAt: time.Now().UTC()})
		assert.Equal(t, attendance.ErrAlreadyRecorded, errors.Cause(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := r.att.CreateRecord(ctx, attendance.Record{StudentID: "9999", Date: d, ScannedAt: time.Now().UTC()})
		assert.Error(t, err)
	})

	t.Run("get", func(t *testing.T) {
		rec, err := r.att.GetRecord(ctx, "1002", d)
		require.NoError(t, err)
		assert.True(t, d.Equal(rec.Date))
		assert.True(t, rec.ScannedAt.Equal(d.Time().Add(13*time.Hour)))

		_, err = r.att.GetRecord(ctx, "1002", d.AddDays(1))
		assert.Equal(t, attendance.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		entries, err := r.att.QueryRecords(ctx, &attendance.QueryFilter{From: d.AddDays(-1), To: d})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		// latest scan first
		assert.Equal(t, "1002", entries[0].StudentID)
		assert.Equal(t, "Sara", entries[0].FirstName)
		assert.Equal(t, student.GenderFemale, entries[0].Gender)
		assert.Equal(t, "1001", entries[1].StudentID)

		entries, err = r.att.QueryRecords(ctx, &attendance.QueryFilter{StudentID: "1001"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, d.AddDays(1).Equal(entries[0].Date))

		entries, err = r.att.QueryRecords(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("present", func(t *testing.T) {
		got, err := r.att.PresentStudentIDs(ctx, d)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"1001", "1002"}, got)

		got, err = r.att.PresentStudentIDs(ctx, d.AddDays(10))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("absent", func(t *testing.T) {
		tests := []struct {
			name     string
			from, to core.Date
			want     []string
		}{
			{name: "single day", from: d, to: d, want: []string{"1003"}},
			{name: "bounds are inclusive", from: d.AddDays(-7), to: d, want: []string{}},
			{name: "after", from: d.AddDays(1), to: d.AddDays(5), want: []string{"1002", "1003"}},
			{name: "nobody came", from: d.AddDays(2), to: d.AddDays(5), want: []string{"1001", "1002", "1003"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := r.att.QueryAbsentStudents(ctx, tt.from, tt.to)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := r.att.DeleteRecord(ctx, "1001", d)
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)

		cnt, err = r.att.DeleteRecord(ctx, "1001", d)
		require.NoError(t, err)
		assert.Zero(t, cnt)
	})

	t.Run("in transaction", func(t *testing.T) {
		boom := errors.New("boom")
		err := core.RunInTx(ctx, r.db, func(tx core.DBExecutor) error {
			if _, err := r.att.CreateRecord(ctx, attendance.Record{StudentID: "1003", Date: d, ScannedAt: time.Now().UTC()}, tx); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)

		_, err = r.att.GetRecord(ctx, "1003", d)
		assert.Equal(t, attendance.ErrNotFound, err)
	})
}

func Test_userRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, r.usr, "Owner", "owner", "owner@canteen.test", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, r.usr, "Admin", "admin", "", "", []string{user.RoleAdmin}, true)
	staff := testutil.CreateUser(t, r.usr, "Zed Staff", "", "zed@canteen.test", "", []string{user.RoleStaff}, false)

	t.Run("uniqueness", func(t *testing.T) {
		assert.NoError(t, r.usr.CheckUsernameUniqueness(ctx, "", "", nil))
		assert.NoError(t, r.usr.CheckUsernameUniqueness(ctx, "newbie", "newbie@canteen.test", nil))
		assert.Equal(t, user.ErrUsernameExists, r.usr.CheckUsernameUniqueness(ctx, "owner", "", nil))
		assert.Equal(t, user.ErrEmailExists, r.usr.CheckUsernameUniqueness(ctx, "newbie", "zed@canteen.test", nil))
		assert.NoError(t, r.usr.CheckUsernameUniqueness(ctx, "owner", "owner@canteen.test", []user.User{owner}))
	})

	t.Run("get", func(t *testing.T) {
		for _, filter := range []user.GetFilter{
			{ID: owner.ID},
			{Username: "owner"},
			{Email: "owner@canteen.test"},
			{UsernameOrEmail: "owner"},
			{UsernameOrEmail: "owner@canteen.test"},
		} {
			got, err := r.usr.GetUser(ctx, filter)
			require.NoError(t, err)
			assert.Equal(t, owner.ID, got.ID)
		}

		_, err := r.usr.GetUser(ctx, user.GetFilter{})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = r.usr.GetUser(ctx, user.GetFilter{Username: "lol"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name     string
			filter   *user.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "all by name", want: []string{admin.ID, owner.ID, staff.ID}},
			{name: "admins include owners", filter: &user.QueryFilter{Roles: []string{user.RoleAdmin}}, want: []string{admin.ID, owner.ID}},
			{name: "owner only", filter: &user.QueryFilter{Roles: []string{user.RoleAdminOwner}}, want: []string{owner.ID}},
			{name: "active", filter: &user.QueryFilter{IsActive: &active}, want: []string{admin.ID, owner.ID}},
			{name: "search email", filter: &user.QueryFilter{Search: "ZED@"}, want: []string{staff.ID}},
			{name: "ordering", ordering: []core.DBOrdering{{Field: "name"}}, want: []string{staff.ID, owner.ID, admin.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := r.usr.QueryUsers(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				gotIDs := make([]string, 0, len(got))
				for _, usr := range got {
					gotIDs = append(gotIDs, usr.ID)
				}
				assert.Equal(t, tt.want, gotIDs)
			})
		}
	})

	t.Run("update & delete", func(t *testing.T) {
		usr := staff
		usr.IsActive = true
		usr.Roles = user.RoleList{user.RoleStaff, user.RoleAdmin}
		_, err := r.usr.UpdateUser(ctx, usr)
		require.NoError(t, err)

		got, err := r.usr.GetUser(ctx, user.GetFilter{ID: staff.ID})
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		assert.Equal(t, usr.Roles, got.Roles)
		assert.True(t, got.IsAdmin())

		cnt, err := r.usr.DeleteUsersByID(ctx, []string{staff.ID, admin.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, cnt)
	})
}
