package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/user"
	"github.com/trezcool/canteen/storage/database"
)

const userTable = "app_user"

var (
	userColumns = []string{
		"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
	}

	userOrderings = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"is_active":  "is_active",
		"created_at": "created_at",
		"last_login": "last_login",
	}
)

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{baseRepository{db: db}}
}

func (repo userRepository) CheckUsernameUniqueness(
	ctx context.Context,
	username, email string,
	excludedUsers []user.User,
	exec ...core.DBExecutor,
) error {
	if username == "" && email == "" {
		return nil
	}

	ex := repo.getExec(exec...)
	cond := sq.Or{}
	if username != "" {
		cond = append(cond, sq.Eq{"username": username})
	}
	if email != "" {
		cond = append(cond, sq.Eq{"email": email})
	}
	qb := builder(ex).Select("username", "email").From(userTable).Where(cond)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var taken []user.User
	if err = sqlx.SelectContext(ctx, ex, &taken, query, args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, usr := range taken {
		if username != "" && usr.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}

	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Insert(userTable).
		Columns(userColumns...).
		Values(
			usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, usr.Roles,
			string(usr.PasswordHash), usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
		).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, core.NewValidationError(user.ErrUsernameExists)
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.User, error) {
	ex := repo.getExec(exec...)
	qb := builder(ex).Select(userColumns...).From(userTable)

	if filter != nil {
		if filter.Search != "" {
			qb = qb.Where(search(filter.Search, "name", "username", "email"))
		}
		if filter.IsActive != nil {
			qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if len(filter.Roles) > 0 {
			// roles are stored as a JSON array; "admin:" also matches "admin:owner"
			cond := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				cond = append(cond, sq.Like{"roles": `%"` + role + `%`})
			}
			qb = qb.Where(cond)
		}
	}
	qb = qb.OrderBy(orderBy(ordering, userOrderings, "name ASC")...)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	users := make([]user.User, 0)
	if err = sqlx.SelectContext(ctx, ex, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var cond sq.Sqlizer
	switch {
	case filter.ID != "":
		cond = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		cond = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		cond = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		cond = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	default:
		return user.User{}, user.ErrNotFound
	}

	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Select(userColumns...).From(userTable).Where(cond).Limit(1).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var usr user.User
	if err = sqlx.GetContext(ctx, ex, &usr, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).
		Update(userTable).
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"username":      usr.Username,
			"email":         usr.Email,
			"is_active":     usr.IsActive,
			"roles":         usr.Roles,
			"password_hash": string(usr.PasswordHash),
			"updated_at":    usr.UpdatedAt,
			"last_login":    usr.LastLogin,
		}).
		Where(sq.Eq{"id": usr.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, core.NewValidationError(user.ErrUsernameExists)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec...)
	query, args, err := builder(ex).Delete(userTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted users")
}
