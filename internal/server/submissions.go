package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/submission"
)

func (s *APIServer) handleCreateSubmission(c *gin.Context) {
	var req submission.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	workerEmail := middleware.GetEmailFromContext(c)
	sub, err := s.submissions.Create(c.Request.Context(), workerEmail, &req)
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrTaskNotFound):
			respondError(c, apierrors.ErrTaskNotFoundError)
		case errors.Is(err, submission.ErrTaskClosed):
			respondError(c, apierrors.ErrTaskClosedError)
		case errors.Is(err, submission.ErrOwnTask):
			respondError(c, apierrors.ErrForbiddenError)
		case errors.Is(err, submission.ErrAlreadySubmitted):
			respondError(c, apierrors.NewInvalidArgumentError("A pending submission for this task already exists"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordSubmission("pending")
	c.JSON(http.StatusCreated, sub)
}

func (s *APIServer) handleListPendingSubmissions(c *gin.Context) {
	subs, err := s.submissions.ListPendingForBuyer(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (s *APIServer) handleListMySubmissions(c *gin.Context) {
	subs, err := s.submissions.ListByWorker(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (s *APIServer) handleListApprovedSubmissions(c *gin.Context) {
	subs, err := s.submissions.ListApprovedByWorker(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (s *APIServer) handleApproveSubmission(c *gin.Context) {
	s.decideSubmission(c, "approved", s.submissions.Approve)
}

func (s *APIServer) handleRejectSubmission(c *gin.Context) {
	s.decideSubmission(c, "rejected", s.submissions.Reject)
}

func (s *APIServer) decideSubmission(c *gin.Context, status string, decide func(ctx context.Context, buyerEmail string, id uuid.UUID) error) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid submission ID"))
		return
	}

	buyerEmail := middleware.GetEmailFromContext(c)
	if err := decide(c.Request.Context(), buyerEmail, submissionID); err != nil {
		switch {
		case errors.Is(err, submission.ErrSubmissionNotFound):
			respondError(c, apierrors.ErrSubmissionNotFoundError)
		case errors.Is(err, submission.ErrNotTaskOwner):
			respondError(c, apierrors.ErrNotTaskOwnerError)
		case errors.Is(err, submission.ErrInvalidTransition):
			respondError(c, apierrors.ErrInvalidTransitionError)
		case errors.Is(err, submission.ErrTaskClosed):
			respondError(c, apierrors.ErrTaskClosedError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordSubmission(status)
	if status == "approved" {
		monitoring.RecordSlotConsumed()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Submission " + status})
}
