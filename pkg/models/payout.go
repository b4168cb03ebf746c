package models

import (
	"time"
)

// Direction indicates whether a payout row moves funds out of or into the treasury.
type Direction string

const (
	// DirectionOutgoing rows are the only ones eligible for dispatch.
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming rows are recorded by the ledger but never dispatched.
	DirectionIncoming Direction = "incoming"
)

// Status is the lifecycle state of a payout row.
type Status string

const (
	// StatusPending rows are waiting to be picked up by a dispatcher run.
	StatusPending Status = "pending"
	// StatusSending is the pre-commit written before a broadcast is attempted.
	StatusSending Status = "sending"
	// StatusSent means the transfer was accepted for broadcast. It is terminal:
	// a sent row is never re-dispatched, even without on-chain confirmation.
	StatusSent Status = "sent"
	// StatusFailed rows stay eligible for a future run with an incremented retry count.
	StatusFailed Status = "failed"
)

// PayoutIntent is a payout row in the ledger store. Rows are created by the
// upstream ledger process and mutated only by the dispatcher.
type PayoutIntent struct {
	ID               string     `json:"id"`
	Direction        Direction  `json:"direction"`
	Status           Status     `json:"status"`
	BeneficiaryRef   string     `json:"beneficiary_ref"`
	Amount           string     `json:"amount"`
	RecipientAddress string     `json:"recipient_address"`
	CreatedAt        time.Time  `json:"created_at"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	LastRetryAt      *time.Time `json:"last_retry_at,omitempty"`
	RetryCount       int        `json:"retry_count"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	FromAddress      string     `json:"from_address,omitempty"`
}

// PayoutUpdate is a partial update for a single payout row. Only non-nil
// fields are written.
type PayoutUpdate struct {
	Status       *Status    `json:"status,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	RetryCount   *int       `json:"retry_count,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	LastRetryAt  *time.Time `json:"last_retry_at,omitempty"`
	FromAddress  *string    `json:"from_address,omitempty"`
}
