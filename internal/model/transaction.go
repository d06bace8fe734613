package model

import "time"

// Status is the lifecycle state of a lending transaction.
type Status string

// Transaction statuses.
const (
	StatusRequested         Status = "Requested"
	StatusApproved          Status = "Approved"
	StatusIssued            Status = "Issued"
	StatusAssignedToProject Status = "Assigned to Project"
	StatusOverdue           Status = "Overdue"
	StatusReturned          Status = "Returned"
	StatusRejected          Status = "Rejected"
)

// transitions is the full state machine. A status missing from the map
// (Returned, Rejected) is terminal. Requested and Assigned to Project are
// the two entry points: the dual-party request flow and the owner's
// self-assignment flow.
var transitions = map[Status][]Status{
	StatusRequested:         {StatusApproved, StatusRejected},
	StatusApproved:          {StatusIssued, StatusRejected},
	StatusIssued:            {StatusOverdue, StatusReturned},
	StatusOverdue:           {StatusReturned},
	StatusAssignedToProject: {StatusReturned},
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is one of the seven known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusRequested, StatusApproved, StatusIssued, StatusAssignedToProject,
		StatusOverdue, StatusReturned, StatusRejected:
		return true
	}
	return false
}

// UrgentStatuses are the states shown in the urgent view: anything that
// needs an action from the owner or is past due.
var UrgentStatuses = []Status{StatusOverdue, StatusApproved, StatusRequested}

// ActiveStatuses are the non-terminal states, i.e. transactions that still
// hold or may come to hold stock.
var ActiveStatuses = []Status{StatusRequested, StatusApproved, StatusIssued, StatusAssignedToProject, StatusOverdue}

// MaxReasonLength bounds the free-text reason on a transaction.
const MaxReasonLength = 500

// Transaction is a single lending event against one item. The quantity is
// fixed at creation; only the status, return date and history change
// afterwards, and the record is never deleted.
type Transaction struct {
	ID         int64          `json:"id"`
	ItemID     int64          `json:"item_id"`
	OwnerID    int64          `json:"owner_id"`
	IssuerID   int64          `json:"issuer_id"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	ReturnDate *time.Time     `json:"return_date,omitempty"`
	Quantity   int            `json:"quantity"`
	History    []HistoryEntry `json:"history,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	OwnerName  string `json:"owner_name,omitempty"`
	IssuerName string `json:"issuer_name,omitempty"`
}

// HistoryEntry is one step in a transaction's append-only audit trail.
type HistoryEntry struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
