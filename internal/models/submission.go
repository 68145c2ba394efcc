package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the status of a submission
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Submission represents a worker's submission against a task. PayableAmount is
// copied from the task at submission time so later task edits cannot change
// what an approval pays. Status moves pending→approved or pending→rejected;
// both transitions are terminal.
type Submission struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	TaskID        uuid.UUID        `json:"task_id" db:"task_id"`
	TaskTitle     string           `json:"task_title" db:"task_title"`
	WorkerEmail   string           `json:"worker_email" db:"worker_email"`
	BuyerEmail    string           `json:"buyer_email" db:"buyer_email"`
	PayableAmount int64            `json:"payable_amount" db:"payable_amount"`
	Details       string           `json:"submission_details" db:"details"`
	Status        SubmissionStatus `json:"status" db:"status"`
	SubmittedAt   time.Time        `json:"current_date" db:"submitted_at"`
	DecidedAt     *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
}
