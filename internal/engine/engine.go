// Package engine implements the transaction lifecycle state machine and its
// coupled item-quantity bookkeeping. Every operation loads, validates and
// writes inside one immediate SQLite transaction, so concurrent callers
// against the same item or transaction serialize: the loser of a race sees
// the already-advanced state and gets a categorical error instead of
// clobbering counters.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/notify"
	"github.com/assetly/assetly/internal/store"
)

// Engine drives transaction lifecycle transitions. Notifier may be nil, in
// which case transitions happen silently.
type Engine struct {
	DB       *sql.DB
	Notifier notify.Notifier
}

// RequestItem creates a transaction in status Requested. No stock is
// reserved yet; stock is only committed when the owner issues. The item
// owner is notified.
func (e *Engine) RequestItem(ctx context.Context, itemID, actorID int64, quantity int, reason string, returnDate time.Time) (*model.Transaction, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, model.Invalid("quantity must be at least 1")
	}
	if !returnDate.After(time.Now()) {
		return nil, model.Invalid("return date must be in the future")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NotFound("item not found")
	}

	id, err := store.CreateTransaction(ctx, tx, &model.Transaction{
		ItemID:     item.ID,
		OwnerID:    item.OwnerID,
		IssuerID:   actorID,
		Status:     model.StatusRequested,
		Reason:     reason,
		ReturnDate: &returnDate,
		Quantity:   quantity,
	}, string(model.StatusRequested), fmt.Sprintf("Requested %d %s", quantity, item.Name))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing request: %w", err)
	}

	txn, err := store.GetTransaction(ctx, e.DB, id)
	if err != nil {
		return nil, err
	}
	e.notify(notify.KindRequested, txn)
	return txn, nil
}

// AssignToProject reserves stock for the owner's own project use and
// creates a transaction directly in status Assigned to Project, bypassing
// the request/approve flow.
func (e *Engine) AssignToProject(ctx context.Context, itemID, actorID int64, quantity int, reason string) (*model.Transaction, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, model.Invalid("quantity must be at least 1")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NotFound("item not found")
	}
	if item.OwnerID != actorID {
		return nil, model.Unauthorized("only the owner can assign this item to a project")
	}

	if err := store.Reserve(ctx, tx, item.ID, quantity, model.CounterProject); err != nil {
		return nil, err
	}

	id, err := store.CreateTransaction(ctx, tx, &model.Transaction{
		ItemID:   item.ID,
		OwnerID:  item.OwnerID,
		IssuerID: actorID,
		Status:   model.StatusAssignedToProject,
		Reason:   reason,
		Quantity: quantity,
	}, string(model.StatusAssignedToProject), fmt.Sprintf("Assigned %d %s to project", quantity, item.Name))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing project assignment: %w", err)
	}

	return store.GetTransaction(ctx, e.DB, id)
}

// Approve moves a Requested transaction to Approved. No stock moves; the
// issuer is notified.
func (e *Engine) Approve(ctx context.Context, transactionID, actorID int64) (*model.Transaction, error) {
	txn, err := e.transition(ctx, transactionID, &actorID, model.StatusApproved,
		"Request approved by owner", nil)
	if err != nil {
		return nil, err
	}
	e.notify(notify.KindApproved, txn)
	return txn, nil
}

// Issue moves an Approved transaction to Issued, reserving the stock. This
// is the point where availability is checked and committed.
func (e *Engine) Issue(ctx context.Context, transactionID, actorID int64) (*model.Transaction, error) {
	return e.transition(ctx, transactionID, &actorID, model.StatusIssued,
		"Item issued to the user",
		func(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
			item, err := store.GetItem(ctx, tx, txn.ItemID)
			if err != nil {
				return err
			}
			if item == nil {
				return model.NotFound("associated item not found")
			}
			return store.Reserve(ctx, tx, item.ID, txn.Quantity, model.CounterIssued)
		})
}

// Reject moves a Requested or Approved transaction to Rejected. Stock was
// never reserved in either state, so the ledger is untouched. The issuer is
// notified.
func (e *Engine) Reject(ctx context.Context, transactionID, actorID int64) (*model.Transaction, error) {
	txn, err := e.transition(ctx, transactionID, &actorID, model.StatusRejected,
		"Request rejected", nil)
	if err != nil {
		return nil, err
	}
	e.notify(notify.KindRejected, txn)
	return txn, nil
}

// Return moves an Assigned to Project, Issued or Overdue transaction to
// Returned and releases the reserved stock back to available. The source
// counter follows the prior status: project for Assigned to Project, issued
// for Issued and Overdue.
func (e *Engine) Return(ctx context.Context, transactionID, actorID int64) (*model.Transaction, error) {
	return e.transition(ctx, transactionID, &actorID, model.StatusReturned,
		"Item returned",
		func(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
			source := model.CounterIssued
			if txn.Status == model.StatusAssignedToProject {
				source = model.CounterProject
			}
			return store.Release(ctx, tx, txn.ItemID, txn.Quantity, source)
		})
}

// Expire moves an Issued transaction past its return date to Overdue. It is
// invoked by the overdue scanner and carries no actor check. Both parties
// are notified. Calling it on a transaction that is not Issued, or not yet
// due, is a conflict; the scanner's selection normally filters those out.
func (e *Engine) Expire(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	txn, err := e.transition(ctx, transactionID, nil, model.StatusOverdue,
		"Return date passed, marked overdue",
		func(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
			if txn.ReturnDate == nil || !txn.ReturnDate.Before(time.Now()) {
				return model.Conflict("transaction is not past its return date")
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	e.notify(notify.KindOverdue, txn)
	return txn, nil
}

// MoveReturnDate replaces a transaction's return date with a future date
// and records the change in the history. The status does not change.
func (e *Engine) MoveReturnDate(ctx context.Context, transactionID, actorID int64, newReturnDate time.Time) (*model.Transaction, error) {
	if !newReturnDate.After(time.Now()) {
		return nil, model.Invalid("return date must be in the future")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	txn, err := store.GetTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, model.NotFound("transaction not found")
	}
	if txn.OwnerID != actorID {
		return nil, model.Unauthorized("not authorized to modify this transaction")
	}

	oldDate := "N/A"
	if txn.ReturnDate != nil {
		oldDate = txn.ReturnDate.Format("02/01/2006")
	}

	if err := store.SetReturnDate(ctx, tx, transactionID, newReturnDate); err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Return date updated from %s to %s", oldDate, newReturnDate.Format("02/01/2006"))
	if err := store.AppendHistory(ctx, tx, transactionID, "Return Date Changed", description); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return date change: %w", err)
	}

	return store.GetTransaction(ctx, e.DB, transactionID)
}

// transition is the shared transition skeleton: load the transaction, check
// the actor (owner-only when actorID is non-nil), check the state machine,
// run the ledger mutation, advance the status and append history, all in
// one database transaction.
func (e *Engine) transition(ctx context.Context, transactionID int64, actorID *int64, to model.Status,
	description string, mutate func(context.Context, *sql.Tx, *model.Transaction) error) (*model.Transaction, error) {

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	txn, err := store.GetTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, model.NotFound("transaction not found")
	}
	if actorID != nil && txn.OwnerID != *actorID {
		return nil, model.Unauthorized("only the owner may perform this action")
	}

	if !txn.Status.CanTransitionTo(to) {
		return nil, transitionConflict(txn.Status, to)
	}

	if mutate != nil {
		if err := mutate(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := store.SetStatus(ctx, tx, transactionID, to); err != nil {
		return nil, err
	}
	if err := store.AppendHistory(ctx, tx, transactionID, string(to), description); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	return store.GetTransaction(ctx, e.DB, transactionID)
}

// transitionConflict phrases the conflict the way callers expect per target
// state.
func transitionConflict(from, to model.Status) error {
	switch to {
	case model.StatusApproved:
		return model.Conflict("only requested transactions can be approved")
	case model.StatusIssued:
		return model.Conflict("only approved transactions can be issued")
	case model.StatusRejected:
		return model.Conflict("only requested or approved transactions can be rejected")
	case model.StatusReturned:
		return model.Conflict("item not returnable")
	case model.StatusOverdue:
		return model.Conflict("only issued transactions can become overdue")
	}
	return model.Conflict("cannot move from %s to %s", from, to)
}

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return model.Invalid("reason required")
	}
	if len(reason) > model.MaxReasonLength {
		return model.Invalid("reason must be at most %d characters", model.MaxReasonLength)
	}
	return nil
}

// notify delivers a notification without blocking or failing the
// transition. Errors are logged only.
func (e *Engine) notify(kind notify.Kind, txn *model.Transaction) {
	if e.Notifier == nil || txn == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Notifier.Notify(ctx, kind, txn); err != nil {
			slog.Error("notification failed", "kind", string(kind), "transaction", txn.ID, "error", err)
		}
	}()
}
