package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/imagehost"
	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/models"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/task"
)

type createTaskRequest struct {
	task.CreateTaskRequest
	ImageBase64 *string `json:"task_image_base64,omitempty"`
}

// handleCreateTask posts a task, debiting the buyer's escrow. A raw image, if
// supplied, is pushed to the image host first so the stored task only ever
// carries a URL.
func (s *APIServer) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	if req.ImageBase64 != nil && *req.ImageBase64 != "" {
		uploaded, err := s.images.Upload(c.Request.Context(), *req.ImageBase64)
		if err != nil {
			if errors.Is(err, imagehost.ErrCircuitOpen) || errors.Is(err, imagehost.ErrNotConfigured) {
				respondError(c, apierrors.ErrUpstreamUnavailableError)
			} else {
				respondError(c, apierrors.NewInvalidArgumentError("Image upload failed"))
			}
			return
		}
		req.ImageURL = &uploaded.URL
	}

	buyerEmail := middleware.GetEmailFromContext(c)
	t, err := s.tasks.Create(c.Request.Context(), buyerEmail, &req.CreateTaskRequest)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			respondError(c, apierrors.ErrInsufficientFundsError)
		case errors.Is(err, ledger.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		case errors.Is(err, task.ErrInvalidRequest),
			errors.Is(err, task.ErrDeadlinePassed),
			errors.Is(err, ledger.ErrInvalidAmount):
			respondError(c, apierrors.NewInvalidArgumentError(err.Error()))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordTaskCreated()
	c.JSON(http.StatusCreated, t)
}

func (s *APIServer) handleListMyTasks(c *gin.Context) {
	tasks, err := s.tasks.ListByBuyer(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *APIServer) handleListAllTasks(c *gin.Context) {
	tasks, err := s.tasks.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *APIServer) handleListAvailableTasks(c *gin.Context) {
	tasks, err := s.tasks.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *APIServer) handleGetTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid task ID"))
		return
	}

	t, err := s.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			respondError(c, apierrors.ErrTaskNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *APIServer) handleUpdateTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid task ID"))
		return
	}

	var req task.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	requester := middleware.GetEmailFromContext(c)
	if err := s.tasks.Update(c.Request.Context(), requester, taskID, &req); err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			respondError(c, apierrors.ErrTaskNotFoundError)
		case errors.Is(err, task.ErrNotOwner):
			respondError(c, apierrors.ErrNotTaskOwnerError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated"})
}

// handleDeleteTask removes a task and refunds its remaining escrow. Owners
// and admins only; the role was resolved by RequireRole for admins, so a
// second lookup distinguishes the two cases here.
func (s *APIServer) handleDeleteTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid task ID"))
		return
	}

	requester := middleware.GetEmailFromContext(c)
	role, err := s.users.GetRole(c.Request.Context(), requester)
	if err != nil {
		respondError(c, apierrors.ErrUserNotFoundError)
		return
	}

	refund, err := s.tasks.Delete(c.Request.Context(), requester, role == models.RoleAdmin, taskID)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			respondError(c, apierrors.ErrTaskNotFoundError)
		case errors.Is(err, task.ErrNotOwner):
			respondError(c, apierrors.ErrNotTaskOwnerError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordTaskDeleted()
	c.JSON(http.StatusOK, gin.H{
		"message":        "Task deleted",
		"refunded_coins": refund,
	})
}
