package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestUserService_CreateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("successful creation returns assigned id", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("alice", "hash", "salt", 10000, 32).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(0))

		id, created, err := service.CreateUser(context.Background(), "alice", "hash", "salt", 10000, 32)
		assert.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 0, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username is a soft failure", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("bob", "h2", "s2", 10000, 32).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		_, created, err := service.CreateUser(context.Background(), "bob", "h2", "s2", 10000, 32)
		assert.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("storage failure bubbles up", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("carol", "h", "s", 10000, 32).
			WillReturnError(sql.ErrConnDone)

		_, _, err := service.CreateUser(context.Background(), "carol", "h", "s", 10000, 32)
		assert.Error(t, err)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestUserService_LookupUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("returns full credential record", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, password, salt, iterations, key_size FROM users").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "salt", "iterations", "key_size"}).
				AddRow(1, "alice", "storedhash", "storedsalt", 10000, 32))

		user, err := service.LookupUser(context.Background(), "alice")
		assert.NoError(t, err)
		assert.Equal(t, 1, user.ID)
		assert.Equal(t, "storedhash", user.Password)
		assert.Equal(t, "storedsalt", user.Salt)
		assert.Equal(t, 10000, user.Iterations)
		assert.Equal(t, 32, user.KeySize)
	})

	t.Run("unknown username yields ErrNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, password, salt, iterations, key_size FROM users").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := service.LookupUser(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserService_FindUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := service.FindUserID(context.Background(), "alice")
	assert.NoError(t, err)
	assert.Equal(t, 7, id)

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = service.FindUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_UpdateCredentials(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("overwrites hash and parameters", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET iterations").
			WithArgs(20000, 64, "newhash", "alice").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.UpdateCredentials(context.Background(), "alice", 20000, 64, "newhash")
		assert.NoError(t, err)
	})

	t.Run("unknown username surfaces ErrNotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET iterations").
			WithArgs(20000, 64, "newhash", "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.UpdateCredentials(context.Background(), "ghost", 20000, 64, "newhash")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserService_LookupAppDisplayName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	mock.ExpectQuery("SELECT name FROM apps").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Wondough Checkout"))

	name, err := service.LookupAppDisplayName(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "Wondough Checkout", name)

	mock.ExpectQuery("SELECT name FROM apps").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err = service.LookupAppDisplayName(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
