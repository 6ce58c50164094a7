package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/animetracker/internal/model"
)

func TestPostgresRevocationRepo_Revoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)
	exp := time.Now().Add(time.Hour).UTC()

	mock.ExpectExec("INSERT INTO revoked_tokens .* ON CONFLICT \\(jti\\) DO NOTHING").
		WithArgs("jti-1", "user-1", exp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Revoke(context.Background(), &model.RevokedToken{JTI: "jti-1", UserID: "user-1", ExpiresAt: exp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresRevocationRepo_IsRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := repo.IsRevoked(context.Background(), "jti-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !revoked {
		t.Error("IsRevoked = false, want true")
	}
}

func TestPostgresRevocationRepo_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRevocationRepo(db)
	before := time.Now().UTC()

	mock.ExpectExec("DELETE FROM revoked_tokens WHERE expires_at").
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
}
