package scanner

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/assetly/assetly/internal/db"
	"github.com/assetly/assetly/internal/engine"
	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/store"
)

func setup(t *testing.T) (*Scanner, *sql.DB, *model.User, *model.Item) {
	t.Helper()
	database := db.NewTestDB(t)
	e := &engine.Engine{DB: database}
	s := &Scanner{DB: database, Engine: e}

	ctx := context.Background()
	owner, err := store.CreateUser(ctx, database, "Owner", "owner@example.com", "1", "x")
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}
	item, err := store.CreateItem(ctx, database, owner.ID, "Widget", 10)
	if err != nil {
		t.Fatalf("creating item: %v", err)
	}
	return s, database, owner, item
}

// issueWithReturnDate walks a transaction to Issued and then backdates or
// postdates its return date.
func issueWithReturnDate(t *testing.T, e *engine.Engine, database *sql.DB, item *model.Item, owner *model.User, qty int, returnDate time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	txn, err := e.RequestItem(ctx, item.ID, owner.ID, qty, "work", time.Now().AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("RequestItem: %v", err)
	}
	if _, err := e.Approve(ctx, txn.ID, owner.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := e.Issue(ctx, txn.ID, owner.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := store.SetReturnDate(ctx, database, txn.ID, returnDate); err != nil {
		t.Fatalf("setting return date: %v", err)
	}
	return txn.ID
}

func TestRunOnceExpiresOnlyEligible(t *testing.T) {
	s, database, owner, item := setup(t)
	ctx := context.Background()

	past := time.Now().AddDate(0, 0, -1)
	future := time.Now().AddDate(0, 0, 1)

	dueID := issueWithReturnDate(t, s.Engine, database, item, owner, 2, past)
	notDueID := issueWithReturnDate(t, s.Engine, database, item, owner, 1, future)

	expired, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	due, _ := store.GetTransaction(ctx, database, dueID)
	if due.Status != model.StatusOverdue {
		t.Errorf("due transaction status = %q, want Overdue", due.Status)
	}
	notDue, _ := store.GetTransaction(ctx, database, notDueID)
	if notDue.Status != model.StatusIssued {
		t.Errorf("not-due transaction status = %q, want Issued", notDue.Status)
	}

	// Expiry never touches counters: the stock stays issued.
	got, _ := store.GetItem(ctx, database, item.ID)
	if got.IssuedQuantity != 3 || got.AvailableQuantity != 7 {
		t.Errorf("counters = (available=%d issued=%d), want (7, 3)", got.AvailableQuantity, got.IssuedQuantity)
	}

	// A second pass finds nothing: already-Overdue records are not
	// re-expired.
	expired, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if expired != 0 {
		t.Errorf("second pass expired = %d, want 0", expired)
	}

	// The scan time was recorded.
	at, err := store.GetLastOverdueScan(ctx, database)
	if err != nil {
		t.Fatalf("GetLastOverdueScan: %v", err)
	}
	if at.IsZero() {
		t.Error("scan time not recorded")
	}
}

func TestRunOnceEmptyDatabase(t *testing.T) {
	s, _, _, _ := setup(t)

	expired, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if expired != 0 {
		t.Errorf("expired = %d, want 0", expired)
	}
}
