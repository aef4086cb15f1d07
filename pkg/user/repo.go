package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"

	"ecoforum/pkg/common"
	"ecoforum/pkg/logger"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Add(ctx context.Context, u *User) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users(username, email, password) VALUES($1, $2, $3) RETURNING id",
		u.Username, u.Email, u.Password).Scan(&id)
	if err != nil {
		return ``, fmt.Errorf("user/repo: user wasn't added: %w", err)
	}
	if id == "" || id == "0" {
		return ``, fmt.Errorf("user/repo: user wasn't added, empty id returned")
	}
	return id, nil
}

func (r *UserRepo) GetByUsernameAndPass(ctx context.Context, uname string, pass string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, email_verified, password FROM users where username=$1", uname)
	u := new(User)
	if err := row.Scan(&u.Id, &u.Username, &u.Email, &u.EmailVerified, &u.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user/repo: no user %q: %w", uname, common.ErrNotFound)
		}
		return nil, fmt.Errorf("user/repo: row scan failed: %w", err)
	}
	if !common.CheckPass(u.Password, pass) {
		return nil, fmt.Errorf("user/repo: password is invalid: %w", common.ErrUnauthenticated)
	}
	return u, nil
}

func (r *UserRepo) UserExists(ctx context.Context, uname string) bool {
	row := r.db.QueryRowContext(ctx, "SELECT id FROM users where username=$1", uname)
	var id string
	if err := row.Scan(&id); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Log(ctx).Warnf("user/repo: could not scan row: %v", err)
		}
		return false
	}
	return true
}

func (r *UserRepo) GetById(ctx context.Context, uid string) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, username, email, email_verified FROM users where id=$1", uid)
	u := new(User)
	if err := row.Scan(&u.Id, &u.Username, &u.Email, &u.EmailVerified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user/repo: no user %s: %w", uid, common.ErrNotFound)
		}
		return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
	}
	return u, nil
}

// MarkEmailVerified flags the user's email as confirmed.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, uid string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET email_verified = TRUE WHERE id=$1", uid)
	if err != nil {
		return fmt.Errorf("user/repo: mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user/repo: mark verified: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user/repo: no user %s: %w", uid, common.ErrNotFound)
	}
	return nil
}

// Returns all users. Used only for seeding the DB.
func (r *UserRepo) GetAll(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, username, email, email_verified FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed executing query for getting all users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := new(User)
		if err := rows.Scan(&u.Id, &u.Username, &u.Email, &u.EmailVerified); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user/repo: iterating users: %w", err)
	}
	return users, nil
}
