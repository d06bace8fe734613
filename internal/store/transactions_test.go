package store

import (
	"context"
	"testing"
	"time"

	"github.com/assetly/assetly/internal/db"
	"github.com/assetly/assetly/internal/model"
)

func TestTransactionHistoryAppendOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := testOwner(t, database)
	item, _ := CreateItem(ctx, database, owner.ID, "Widget", 5)

	id, err := CreateTransaction(ctx, database, &model.Transaction{
		ItemID:   item.ID,
		OwnerID:  owner.ID,
		IssuerID: owner.ID,
		Status:   model.StatusRequested,
		Reason:   "testing",
		Quantity: 1,
	}, "Requested", "Requested 1 Widget")
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	AppendHistory(ctx, database, id, "Approved", "Request approved by owner")
	AppendHistory(ctx, database, id, "Issued", "Item issued to the user")

	txn, err := GetTransaction(ctx, database, id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if len(txn.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(txn.History))
	}
	for i, want := range []string{"Requested", "Approved", "Issued"} {
		if txn.History[i].Action != want {
			t.Errorf("history[%d] = %q, want %q", i, txn.History[i].Action, want)
		}
	}
}

func TestGetTransactionMissing(t *testing.T) {
	database := db.NewTestDB(t)

	txn, err := GetTransaction(context.Background(), database, 42)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if txn != nil {
		t.Error("expected nil for missing transaction")
	}
}

func TestListUserTransactions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := testOwner(t, database)
	issuer, _ := CreateUser(ctx, database, "Borrower", "b@example.com", "7", "x")
	bystander, _ := CreateUser(ctx, database, "Bystander", "c@example.com", "8", "x")
	item, _ := CreateItem(ctx, database, owner.ID, "Widget", 5)

	mk := func(status model.Status) int64 {
		id, err := CreateTransaction(ctx, database, &model.Transaction{
			ItemID: item.ID, OwnerID: owner.ID, IssuerID: issuer.ID,
			Status: status, Quantity: 1,
		}, string(status), "entry")
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		return id
	}
	mk(model.StatusRequested)
	mk(model.StatusIssued)
	mk(model.StatusReturned)

	// Owner and issuer both see all three; a bystander sees none.
	for _, userID := range []int64{owner.ID, issuer.ID} {
		txns, err := ListUserTransactions(ctx, database, userID, nil)
		if err != nil {
			t.Fatalf("ListUserTransactions: %v", err)
		}
		if len(txns) != 3 {
			t.Errorf("user %d sees %d transactions, want 3", userID, len(txns))
		}
		for _, txn := range txns {
			if txn.ItemName != "Widget" || txn.OwnerName != "Owner" || txn.IssuerName != "Borrower" {
				t.Errorf("joined names not populated: %+v", txn)
			}
		}
	}
	txns, _ := ListUserTransactions(ctx, database, bystander.ID, nil)
	if len(txns) != 0 {
		t.Errorf("bystander sees %d transactions, want 0", len(txns))
	}

	// Urgent filter keeps only Requested here.
	urgent, err := ListUserTransactions(ctx, database, owner.ID, model.UrgentStatuses)
	if err != nil {
		t.Fatalf("ListUserTransactions urgent: %v", err)
	}
	if len(urgent) != 1 || urgent[0].Status != model.StatusRequested {
		t.Errorf("urgent list = %+v, want one Requested", urgent)
	}
}

func TestListItemTransactionsExcludesTerminal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := testOwner(t, database)
	item, _ := CreateItem(ctx, database, owner.ID, "Widget", 5)

	for _, status := range []model.Status{model.StatusRequested, model.StatusIssued, model.StatusReturned, model.StatusRejected} {
		if _, err := CreateTransaction(ctx, database, &model.Transaction{
			ItemID: item.ID, OwnerID: owner.ID, IssuerID: owner.ID,
			Status: status, Quantity: 1,
		}, string(status), "entry"); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	txns, err := ListItemTransactions(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("ListItemTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("active transactions = %d, want 2", len(txns))
	}
	for _, txn := range txns {
		if txn.Status.Terminal() {
			t.Errorf("terminal transaction %d in active list", txn.ID)
		}
	}
}

func TestListOverdueCandidates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := testOwner(t, database)
	item, _ := CreateItem(ctx, database, owner.ID, "Widget", 5)

	past := time.Now().AddDate(0, 0, -2)
	future := time.Now().AddDate(0, 0, 2)

	mk := func(status model.Status, returnDate *time.Time) int64 {
		id, err := CreateTransaction(ctx, database, &model.Transaction{
			ItemID: item.ID, OwnerID: owner.ID, IssuerID: owner.ID,
			Status: status, ReturnDate: returnDate, Quantity: 1,
		}, string(status), "entry")
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		return id
	}

	due := mk(model.StatusIssued, &past)
	mk(model.StatusIssued, &future)  // not yet due
	mk(model.StatusIssued, nil)      // no return date
	mk(model.StatusOverdue, &past)   // already overdue, skipped
	mk(model.StatusRequested, &past) // not issued

	ids, err := ListOverdueCandidates(ctx, database, time.Now())
	if err != nil {
		t.Fatalf("ListOverdueCandidates: %v", err)
	}
	if len(ids) != 1 || ids[0] != due {
		t.Errorf("candidates = %v, want [%d]", ids, due)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}
	again, _ := GetJWTSecret(ctx, database)
	if again != secret {
		t.Error("secret not stable across calls")
	}

	if at, _ := GetLastOverdueScan(ctx, database); !at.IsZero() {
		t.Errorf("expected zero time before first scan, got %v", at)
	}
	now := time.Now().Truncate(time.Second)
	if err := SetLastOverdueScan(ctx, database, now); err != nil {
		t.Fatalf("SetLastOverdueScan: %v", err)
	}
	at, err := GetLastOverdueScan(ctx, database)
	if err != nil {
		t.Fatalf("GetLastOverdueScan: %v", err)
	}
	if !at.Equal(now) {
		t.Errorf("last scan = %v, want %v", at, now)
	}
}
