package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := store.NewWithDB(sqlx.NewDb(db, "sqlmock"))
	return NewAuthService(s, testSecret, time.Hour), mock
}

var userCols = []string{"id", "name", "email", "password_hash", "role", "created_at"}

func TestRegister(t *testing.T) {
	svc, mock := newAuthService(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("ani@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("Ani", "ani@example.com", sqlmock.AnyArg(), models.RoleUser).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	user, err := svc.Register(context.Background(), &RegisterRequest{
		Name:     "Ani",
		Email:    "ani@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "supersecret", user.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterEmailTaken(t *testing.T) {
	svc, mock := newAuthService(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("ani@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Ani", "ani@example.com", "hash", models.RoleUser, time.Now()))

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Name:     "Ani",
		Email:    "ani@example.com",
		Password: "supersecret",
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestLoginIssuesToken(t *testing.T) {
	svc, mock := newAuthService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("ani@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(42, "Ani", "ani@example.com", string(hash), models.RoleAdmin, time.Now()))

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "ani@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	token, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["user_id"])
	assert.Equal(t, models.RoleAdmin, claims["role"])
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock := newAuthService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("ani@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(42, "Ani", "ani@example.com", string(hash), models.RoleUser, time.Now()))

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "ani@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, mock := newAuthService(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
