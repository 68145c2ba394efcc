package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/models"
	"github.com/workloy/workloy/internal/task"
)

// Service errors
var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNotTaskOwner       = errors.New("caller does not own the referenced task")
	ErrInvalidTransition  = errors.New("submission is not pending")
	ErrTaskClosed         = errors.New("task has no open slots")
	ErrTaskNotFound       = errors.New("task not found")
	ErrOwnTask            = errors.New("workers cannot submit against their own task")
	ErrAlreadySubmitted   = errors.New("a pending submission for this task already exists")
)

// Service handles the submission lifecycle: pending → approved (credits the
// worker and consumes a task slot) or pending → rejected (restores the slot).
// Both transitions are terminal and both happen inside one transaction with
// their ledger and slot effects.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new submission service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateRequest represents a worker's submission against an open task
type CreateRequest struct {
	TaskID  uuid.UUID `json:"task_id" binding:"required"`
	Details string    `json:"submission_details" binding:"required"`
}

// Create records a pending submission. The payable amount and buyer email are
// snapshotted from the task so later edits cannot change what approval pays.
func (s *Service) Create(ctx context.Context, workerEmail string, req *CreateRequest) (*models.Submission, error) {
	var title, buyerEmail string
	var slots int
	var payable int64
	err := s.db.QueryRow(ctx, `
		SELECT title, created_by, slots, payable_amount FROM tasks WHERE id = $1
	`, req.TaskID).Scan(&title, &buyerEmail, &slots, &payable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if slots <= 0 {
		return nil, ErrTaskClosed
	}
	if buyerEmail == workerEmail {
		return nil, ErrOwnTask
	}

	var sub models.Submission
	err = s.db.QueryRow(ctx, `
		INSERT INTO submissions (task_id, task_title, worker_email, buyer_email,
		                         payable_amount, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, task_id, task_title, worker_email, buyer_email,
		          payable_amount, details, status, submitted_at, decided_at
	`, req.TaskID, title, workerEmail, buyerEmail, payable, req.Details).Scan(
		&sub.ID, &sub.TaskID, &sub.TaskTitle, &sub.WorkerEmail, &sub.BuyerEmail,
		&sub.PayableAmount, &sub.Details, &sub.Status, &sub.SubmittedAt, &sub.DecidedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return &sub, nil
}

// Approve credits the worker and consumes a task slot, atomically with the
// status flip. The row lock plus the pending check make approval terminal:
// a second approve sees a non-pending status and credits nothing.
func (s *Service) Approve(ctx context.Context, buyerEmail string, submissionID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := lockSubmission(ctx, tx, submissionID)
	if err != nil {
		return err
	}
	if sub.BuyerEmail != buyerEmail {
		return ErrNotTaskOwner
	}
	if sub.Status != models.SubmissionStatusPending {
		return ErrInvalidTransition
	}

	if err := task.ConsumeSlot(ctx, tx, sub.TaskID); err != nil {
		if errors.Is(err, task.ErrTaskClosed) {
			return ErrTaskClosed
		}
		return err
	}

	// The credit is the submission's payable amount, drawn from the escrow
	// the buyer paid in at task creation. The coin↔USD rate never applies
	// inside the platform.
	if err := ledger.Credit(ctx, tx, sub.WorkerEmail, sub.PayableAmount); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE submissions SET status = $1, decided_at = NOW() WHERE id = $2
	`, models.SubmissionStatusApproved, submissionID); err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reject flips a pending submission to rejected and restores the task slot.
// No coins move.
func (s *Service) Reject(ctx context.Context, buyerEmail string, submissionID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := lockSubmission(ctx, tx, submissionID)
	if err != nil {
		return err
	}
	if sub.BuyerEmail != buyerEmail {
		return ErrNotTaskOwner
	}
	if sub.Status != models.SubmissionStatusPending {
		return ErrInvalidTransition
	}

	if _, err := tx.Exec(ctx, `
		UPDATE submissions SET status = $1, decided_at = NOW() WHERE id = $2
	`, models.SubmissionStatusRejected, submissionID); err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	if err := task.RestoreSlot(ctx, tx, sub.TaskID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockSubmission reads a submission FOR UPDATE inside the caller's transaction
func lockSubmission(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	err := tx.QueryRow(ctx, `
		SELECT id, task_id, task_title, worker_email, buyer_email,
		       payable_amount, details, status, submitted_at, decided_at
		FROM submissions WHERE id = $1 FOR UPDATE
	`, id).Scan(
		&sub.ID, &sub.TaskID, &sub.TaskTitle, &sub.WorkerEmail, &sub.BuyerEmail,
		&sub.PayableAmount, &sub.Details, &sub.Status, &sub.SubmittedAt, &sub.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

// GetByID retrieves a submission by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.QueryRow(ctx, `
		SELECT id, task_id, task_title, worker_email, buyer_email,
		       payable_amount, details, status, submitted_at, decided_at
		FROM submissions WHERE id = $1
	`, id).Scan(
		&sub.ID, &sub.TaskID, &sub.TaskTitle, &sub.WorkerEmail, &sub.BuyerEmail,
		&sub.PayableAmount, &sub.Details, &sub.Status, &sub.SubmittedAt, &sub.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

// ListPendingForBuyer retrieves the review queue for a buyer's tasks
func (s *Service) ListPendingForBuyer(ctx context.Context, buyerEmail string) ([]models.Submission, error) {
	return s.list(ctx, `
		SELECT id, task_id, task_title, worker_email, buyer_email,
		       payable_amount, details, status, submitted_at, decided_at
		FROM submissions
		WHERE buyer_email = $1 AND status = 'pending'
		ORDER BY submitted_at ASC
	`, buyerEmail)
}

// ListByWorker retrieves a worker's submissions, newest first
func (s *Service) ListByWorker(ctx context.Context, workerEmail string) ([]models.Submission, error) {
	return s.list(ctx, `
		SELECT id, task_id, task_title, worker_email, buyer_email,
		       payable_amount, details, status, submitted_at, decided_at
		FROM submissions
		WHERE worker_email = $1
		ORDER BY submitted_at DESC
	`, workerEmail)
}

// ListApprovedByWorker retrieves a worker's approved submissions, newest first
func (s *Service) ListApprovedByWorker(ctx context.Context, workerEmail string) ([]models.Submission, error) {
	return s.list(ctx, `
		SELECT id, task_id, task_title, worker_email, buyer_email,
		       payable_amount, details, status, submitted_at, decided_at
		FROM submissions
		WHERE worker_email = $1 AND status = 'approved'
		ORDER BY decided_at DESC
	`, workerEmail)
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]models.Submission, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		err := rows.Scan(
			&sub.ID, &sub.TaskID, &sub.TaskTitle, &sub.WorkerEmail, &sub.BuyerEmail,
			&sub.PayableAmount, &sub.Details, &sub.Status, &sub.SubmittedAt, &sub.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
