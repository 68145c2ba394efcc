package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/models"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/withdrawal"
)

func (s *APIServer) handleRequestWithdrawal(c *gin.Context) {
	var req withdrawal.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	workerEmail := middleware.GetEmailFromContext(c)
	w, err := s.withdrawals.Request(c.Request.Context(), workerEmail, &req)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrBelowMinimum):
			respondError(c, apierrors.NewInvalidArgumentError(
				fmt.Sprintf("Minimum withdrawal is %d coins", models.MinWithdrawalCoins)))
		case errors.Is(err, withdrawal.ErrInsufficientFunds):
			respondError(c, apierrors.ErrInsufficientFundsError)
		case errors.Is(err, withdrawal.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordWithdrawal("pending")
	c.JSON(http.StatusCreated, w)
}

func (s *APIServer) handleListPendingWithdrawals(c *gin.Context) {
	ws, err := s.withdrawals.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": ws})
}

func (s *APIServer) handleListMyWithdrawals(c *gin.Context) {
	ws, err := s.withdrawals.ListByWorker(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": ws})
}

// handleWithdrawalTotal returns a worker's approved payout total. Callers may
// only ask about themselves.
func (s *APIServer) handleWithdrawalTotal(c *gin.Context) {
	email := c.Param("email")
	if email != middleware.GetEmailFromContext(c) {
		respondError(c, apierrors.ErrForbiddenError)
		return
	}

	total, err := s.withdrawals.ApprovedTotalUSD(c.Request.Context(), email)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_usd": total})
}

func (s *APIServer) handleApproveWithdrawal(c *gin.Context) {
	s.decideWithdrawal(c, "approved", s.withdrawals.Approve)
}

func (s *APIServer) handleRejectWithdrawal(c *gin.Context) {
	s.decideWithdrawal(c, "rejected", s.withdrawals.Reject)
}

func (s *APIServer) decideWithdrawal(c *gin.Context, status string, decide func(ctx context.Context, adminEmail string, id uuid.UUID) error) {
	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid withdrawal ID"))
		return
	}

	adminEmail := middleware.GetEmailFromContext(c)
	if err := decide(c.Request.Context(), adminEmail, withdrawalID); err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrWithdrawalNotFound):
			respondError(c, apierrors.ErrWithdrawalNotFoundError)
		case errors.Is(err, withdrawal.ErrNotPending):
			respondError(c, apierrors.ErrInvalidTransitionError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	monitoring.RecordWithdrawal(status)
	c.JSON(http.StatusOK, gin.H{"message": "Withdrawal " + status})
}
