package events

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestProcessedStoreClaimAndRelease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("stripe", "evt_1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	first, err := store.Claim(context.Background(), "stripe", "evt_1")
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v %v", first, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("stripe", "evt_1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	again, err := store.Claim(context.Background(), "stripe", "evt_1")
	if err != nil || again {
		t.Fatalf("expected duplicate claim to lose, got %v %v", again, err)
	}

	mock.ExpectExec("DELETE FROM processed_events").WithArgs("stripe", "evt_1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := store.Release(context.Background(), "stripe", "evt_1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
