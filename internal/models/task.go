package models

import (
	"time"

	"github.com/google/uuid"
)

// Task represents a posted micro-task. Slots is the number of positions still
// open; RequiredWorkers is the slot count at creation time and never changes.
// TotalPayable is the escrow snapshot (RequiredWorkers × PayableAmount) debited
// from the buyer when the task was created. The sum of coins paid to workers
// plus any refund to the buyer never exceeds TotalPayable.
type Task struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"task_title" db:"title"`
	Detail          string    `json:"task_detail" db:"detail"`
	SubmissionInfo  string    `json:"submission_info" db:"submission_info"`
	ImageURL        *string   `json:"task_image_url,omitempty" db:"image_url"`
	Slots           int       `json:"required_workers" db:"slots"`
	RequiredWorkers int       `json:"original_workers" db:"required_workers"`
	PayableAmount   int64     `json:"payable_amount" db:"payable_amount"`
	TotalPayable    int64     `json:"total_payable_amount" db:"total_payable"`
	CompletionDate  time.Time `json:"completion_date" db:"completion_date"`
	CreatedBy       string    `json:"created_by" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Open reports whether the task still accepts submissions.
func (t *Task) Open() bool {
	return t.Slots > 0
}
