package user

import (
	"context"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	. "ecoforum/pkg/common"
)

var (
	userID     = "1"
	username   = "pike"
	email      = "pike@example.org"
	password   = "sdfsdfsdf"
	salt       = "12345678"
	hashedPass = HashPass(password, salt)
)

func newRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("cant create mock: %s", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func TestGetById(t *testing.T) {
	r, mock := newRepo(t)

	t.Run("should return user", func(t *testing.T) {
		expect := &User{Id: userID, Username: username, Email: email, EmailVerified: true}

		rows := sqlmock.NewRows([]string{"id", "username", "email", "email_verified"})
		rows.AddRow(expect.Id, expect.Username, expect.Email, expect.EmailVerified)

		mock.
			ExpectQuery("SELECT id, username, email, email_verified FROM users where").
			WithArgs(userID).
			WillReturnRows(rows)

		gotUser, err := r.GetById(context.TODO(), userID)
		if err != nil {
			t.Errorf("unexpected err: %s", err)
			return
		}
		assert.Equal(t, expect, gotUser)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})

	t.Run("should return not found", func(t *testing.T) {
		mock.
			ExpectQuery("SELECT id, username, email, email_verified FROM users where").
			WithArgs("404").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "email_verified"}))
		_, err := r.GetById(context.TODO(), "404")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should return DB error", func(t *testing.T) {
		expectedErr := fmt.Errorf("mock_db_error")
		mock.
			ExpectQuery("SELECT id, username, email, email_verified FROM users where").
			WithArgs(userID).
			WillReturnError(expectedErr)
		_, err := r.GetById(context.TODO(), userID)
		assert.ErrorIs(t, err, expectedErr)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})
}

func TestRepoAdd(t *testing.T) {
	repo, mock := newRepo(t)
	testUser := &User{Username: username, Email: email, Password: hashedPass}

	t.Run("should add new user", func(t *testing.T) {
		mock.
			ExpectQuery("INSERT INTO users").
			WithArgs(username, email, hashedPass).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))

		addedUserId, err := repo.Add(context.TODO(), testUser)
		if err != nil {
			t.Errorf("unexpected error %s", err)
			return
		}
		assert.Equal(t, userID, addedUserId)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})

	t.Run("should return query error", func(t *testing.T) {
		expectedErr := fmt.Errorf("bad query")
		mock.
			ExpectQuery("INSERT INTO users").
			WithArgs(username, email, hashedPass).
			WillReturnError(expectedErr)
		_, err := repo.Add(context.TODO(), testUser)
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("should return zero id error", func(t *testing.T) {
		mock.
			ExpectQuery("INSERT INTO users").
			WithArgs(username, email, hashedPass).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0"))
		_, err := repo.Add(context.TODO(), testUser)
		assert.ErrorContains(t, err, "user wasn't added")
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})
}

func TestGetByUsernameAndPass(t *testing.T) {
	r, mock := newRepo(t)
	expect := &User{Id: userID, Username: username, Email: email, Password: hashedPass}
	columns := []string{"id", "username", "email", "email_verified", "password"}
	const query = "SELECT id, username, email, email_verified, password FROM users where username"

	t.Run("should return user", func(t *testing.T) {
		row := sqlmock.NewRows(columns).
			AddRow(expect.Id, expect.Username, expect.Email, false, expect.Password)
		mock.ExpectQuery(query).WithArgs(username).WillReturnRows(row)

		gotUser, err := r.GetByUsernameAndPass(context.TODO(), username, password)
		if err != nil {
			t.Errorf("unexpected err: %s", err)
			return
		}
		assert.Equal(t, expect, gotUser)
	})

	t.Run("should return error: bad password", func(t *testing.T) {
		row := sqlmock.NewRows(columns).
			AddRow(expect.Id, expect.Username, expect.Email, false, expect.Password)
		mock.ExpectQuery(query).WithArgs(username).WillReturnRows(row)
		_, err := r.GetByUsernameAndPass(context.TODO(), username, "badpassword")
		assert.ErrorContains(t, err, "password is invalid")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("should return error: unknown user", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(columns))
		_, err := r.GetByUsernameAndPass(context.TODO(), "ghost", password)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should return error: DB error", func(t *testing.T) {
		expectedErr := fmt.Errorf("mock_db_error")
		mock.ExpectQuery(query).WithArgs(username).WillReturnError(expectedErr)
		_, err := r.GetByUsernameAndPass(context.TODO(), username, password)
		assert.ErrorIs(t, err, expectedErr)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})
}

func TestUserExists(t *testing.T) {
	r, mock := newRepo(t)

	t.Run("should return true", func(t *testing.T) {
		mock.
			ExpectQuery("SELECT id FROM users where").
			WithArgs(username).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))
		assert.True(t, r.UserExists(context.TODO(), username))
	})

	t.Run("should return false", func(t *testing.T) {
		mock.
			ExpectQuery("SELECT id FROM users where").
			WithArgs(username).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		assert.False(t, r.UserExists(context.TODO(), username))
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})
}

func TestMarkEmailVerified(t *testing.T) {
	r, mock := newRepo(t)

	mock.
		ExpectExec("UPDATE users SET email_verified = TRUE").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, r.MarkEmailVerified(context.TODO(), userID))

	mock.
		ExpectExec("UPDATE users SET email_verified = TRUE").
		WithArgs("404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, r.MarkEmailVerified(context.TODO(), "404"), ErrNotFound)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations unfulfilled: %s", err)
	}
}

func TestGetAll(t *testing.T) {
	r, mock := newRepo(t)
	const query = "SELECT id, username, email, email_verified FROM users"

	t.Run("should return users", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "username", "email", "email_verified"})
		expectedUsers := []*User{
			{Id: "1", Username: "user1", Email: "user1@example.org"},
			{Id: "2", Username: "user2", EmailVerified: true},
			{Id: "3", Username: "user3"},
		}
		for _, u := range expectedUsers {
			rows.AddRow(u.Id, u.Username, u.Email, u.EmailVerified)
		}
		mock.ExpectQuery(query).WillReturnRows(rows)
		gotUsers, err := r.GetAll(context.TODO())
		if err != nil {
			t.Errorf("unexpected err: %s", err)
			return
		}
		assert.Equal(t, expectedUsers, gotUsers)
	})

	t.Run("should return DB error", func(t *testing.T) {
		expectedErr := fmt.Errorf("mock_db_error")
		mock.ExpectQuery(query).WillReturnError(expectedErr)
		_, err := r.GetAll(context.TODO())
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("should return scan rows error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id"}).AddRow("2")
		mock.ExpectQuery(query).WillReturnRows(rows)
		_, err := r.GetAll(context.TODO())
		assert.ErrorContains(t, err, "scan")
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations unfulfilled: %s", err)
			return
		}
	})
}
