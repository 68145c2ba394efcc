package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/models"
)

// Service errors
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskClosed     = errors.New("task has no open slots")
	ErrNotOwner       = errors.New("caller does not own the task")
	ErrInvalidRequest = errors.New("invalid task request")
	ErrDeadlinePassed = errors.New("completion date is in the past")
)

// Ceilings on task sizing. They bound the escrow product far inside int64
// range, so required_workers * payable_amount can never wrap.
const (
	MaxRequiredWorkers = 10_000
	MaxPayableAmount   = 1_000_000
)

// Service handles the task lifecycle. A task escrows
// required_workers × payable_amount coins from its buyer at creation; the
// escrow drains one slot at a time through submission approvals and whatever
// remains for open slots returns to the buyer on deletion.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new task service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateTaskRequest represents a request to post a task
type CreateTaskRequest struct {
	Title           string    `json:"task_title" binding:"required"`
	Detail          string    `json:"task_detail"`
	SubmissionInfo  string    `json:"submission_info"`
	ImageURL        *string   `json:"task_image_url,omitempty"`
	RequiredWorkers int       `json:"required_workers" binding:"required"`
	PayableAmount   int64     `json:"payable_amount" binding:"required"`
	CompletionDate  time.Time `json:"completion_date" binding:"required"`
}

// Create posts a task, debiting the buyer's escrow first. The debit and the
// insert share one transaction: if the buyer cannot cover the escrow no task
// record appears, and if the insert fails the debit rolls back.
func (s *Service) Create(ctx context.Context, buyerEmail string, req *CreateTaskRequest) (*models.Task, error) {
	if req.RequiredWorkers <= 0 || req.RequiredWorkers > MaxRequiredWorkers ||
		req.PayableAmount <= 0 || req.PayableAmount > MaxPayableAmount {
		return nil, ErrInvalidRequest
	}
	if !req.CompletionDate.After(time.Now()) {
		return nil, ErrDeadlinePassed
	}
	escrow := int64(req.RequiredWorkers) * req.PayableAmount

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ledger.Debit(ctx, tx, buyerEmail, escrow); err != nil {
		return nil, err
	}

	var t models.Task
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (title, detail, submission_info, image_url, slots,
		                   required_workers, payable_amount, total_payable,
		                   completion_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9)
		RETURNING id, title, detail, submission_info, image_url, slots,
		          required_workers, payable_amount, total_payable,
		          completion_date, created_by, created_at
	`, req.Title, req.Detail, req.SubmissionInfo, req.ImageURL,
		req.RequiredWorkers, req.PayableAmount, escrow,
		req.CompletionDate, buyerEmail).Scan(
		&t.ID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.ImageURL, &t.Slots,
		&t.RequiredWorkers, &t.PayableAmount, &t.TotalPayable,
		&t.CompletionDate, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &t, nil
}

// ConsumeSlot takes one open slot. The guard and the decrement are one
// statement: two approvals racing for the last slot cannot both succeed.
func ConsumeSlot(ctx context.Context, q ledger.Querier, taskID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE tasks SET slots = slots - 1
		WHERE id = $1 AND slots > 0
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to consume slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)
		`, taskID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		if !exists {
			return ErrTaskNotFound
		}
		return ErrTaskClosed
	}
	return nil
}

// RestoreSlot returns one slot after a rejection, capped at the original
// count so escrow can never grow past what the buyer paid in. Restoring a
// slot on a task already at cap is a no-op, not an error: rejecting the
// first submission of a fresh task must still succeed.
func RestoreSlot(ctx context.Context, q ledger.Querier, taskID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE tasks SET slots = LEAST(slots + 1, required_workers)
		WHERE id = $1
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to restore slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task and refunds the escrow still held for open slots to
// the buyer. The refund is unconditional: unfilled positions always return
// their coins, whether the deadline has passed or not. If the credit fails
// the deletion does not happen; ledger consistency outranks record removal.
func (s *Service) Delete(ctx context.Context, requester string, isAdmin bool, taskID uuid.UUID) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var createdBy string
	var slots int
	var payable int64
	err = tx.QueryRow(ctx, `
		SELECT created_by, slots, payable_amount FROM tasks WHERE id = $1 FOR UPDATE
	`, taskID).Scan(&createdBy, &slots, &payable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTaskNotFound
		}
		return 0, fmt.Errorf("failed to get task: %w", err)
	}

	if !isAdmin && requester != createdBy {
		return 0, ErrNotOwner
	}

	refund := int64(slots) * payable
	if refund > 0 {
		if err := ledger.Credit(ctx, tx, createdBy, refund); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return 0, fmt.Errorf("failed to delete task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return refund, nil
}

// UpdateRequest carries the editable descriptive fields
type UpdateRequest struct {
	Title          string `json:"task_title" binding:"required"`
	Detail         string `json:"task_detail"`
	SubmissionInfo string `json:"submission_info"`
}

// Update edits a task's descriptive fields. Slot counts and amounts are not
// editable; they belong to the escrow.
func (s *Service) Update(ctx context.Context, requester string, taskID uuid.UUID, req *UpdateRequest) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET title = $1, detail = $2, submission_info = $3
		WHERE id = $4 AND created_by = $5
	`, req.Title, req.Detail, req.SubmissionInfo, taskID, requester)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)
		`, taskID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		if !exists {
			return ErrTaskNotFound
		}
		return ErrNotOwner
	}
	return nil
}

// GetByID retrieves a task by ID
func (s *Service) GetByID(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	var t models.Task
	err := s.db.QueryRow(ctx, taskSelect+` WHERE id = $1`, taskID).Scan(taskFields(&t)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// ListByBuyer retrieves the tasks a buyer created, latest deadline first
func (s *Service) ListByBuyer(ctx context.Context, buyerEmail string) ([]models.Task, error) {
	return s.list(ctx, taskSelect+` WHERE created_by = $1 ORDER BY completion_date DESC`, buyerEmail)
}

// ListAvailable retrieves open tasks for workers, latest deadline first
func (s *Service) ListAvailable(ctx context.Context) ([]models.Task, error) {
	return s.list(ctx, taskSelect+` WHERE slots > 0 ORDER BY completion_date DESC`)
}

// ListAll retrieves every task (admin view)
func (s *Service) ListAll(ctx context.Context) ([]models.Task, error) {
	return s.list(ctx, taskSelect+` ORDER BY created_at DESC`)
}

const taskSelect = `
	SELECT id, title, detail, submission_info, image_url, slots,
	       required_workers, payable_amount, total_payable,
	       completion_date, created_by, created_at
	FROM tasks`

func taskFields(t *models.Task) []any {
	return []any{
		&t.ID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.ImageURL, &t.Slots,
		&t.RequiredWorkers, &t.PayableAmount, &t.TotalPayable,
		&t.CompletionDate, &t.CreatedBy, &t.CreatedAt,
	}
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(taskFields(&t)...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
