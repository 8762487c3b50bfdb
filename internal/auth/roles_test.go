package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestHasRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewRoleStore(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, "admin").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, "auditor").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := store.HasRole(context.Background(), userID, "admin")
	if err != nil || !ok {
		t.Fatalf("expected admin role, got %v %v", ok, err)
	}
	ok, err = store.HasRole(context.Background(), userID, "auditor")
	if err != nil || ok {
		t.Fatalf("expected no auditor role, got %v %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHasRoleError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT EXISTS").WillReturnError(boom)

	if _, err := NewRoleStore(mock).HasRole(context.Background(), uuid.New(), "admin"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestGrant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery("INSERT INTO user_roles").
		WithArgs(pgxmock.AnyArg(), userID, "admin").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	if err := NewRoleStore(mock).Grant(context.Background(), userID, "admin"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
