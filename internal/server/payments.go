package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/payment"
)

func (s *APIServer) handleCreatePaymentIntent(c *gin.Context) {
	var req payment.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	email := middleware.GetEmailFromContext(c)
	resp, err := s.payments.CreateIntent(c.Request.Context(), email, &req)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownPackage):
			respondError(c, apierrors.NewInvalidArgumentError("Unknown coin package"))
		case errors.Is(err, payment.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		case errors.Is(err, payment.ErrStripeDisabled):
			respondError(c, apierrors.ErrUpstreamUnavailableError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleRecordPayment records a confirmed purchase and credits the coins.
// Replaying the same transaction ID returns 200 with the original record
// instead of crediting twice.
func (s *APIServer) handleRecordPayment(c *gin.Context) {
	var req payment.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	email := middleware.GetEmailFromContext(c)
	p, credited, err := s.payments.Record(c.Request.Context(), email, &req)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownPackage):
			respondError(c, apierrors.NewInvalidArgumentError("Unknown coin package"))
		case errors.Is(err, payment.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	if !credited {
		monitoring.RecordPayment(req.PaymentMethod, "replayed")
		c.JSON(http.StatusOK, gin.H{"payment": p, "credited": false})
		return
	}

	monitoring.RecordPayment(req.PaymentMethod, "recorded")
	amountUSD, _ := p.AmountUSD.Float64()
	monitoring.RecordRevenue(amountUSD)
	c.JSON(http.StatusCreated, gin.H{"payment": p, "credited": true})
}

func (s *APIServer) handlePaymentHistory(c *gin.Context) {
	payments, err := s.payments.History(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (s *APIServer) handleListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": s.payments.Packages()})
}
