package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/middleware"
)

func (s *APIServer) handleAdminStats(c *gin.Context) {
	st, err := s.stats.Platform(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *APIServer) handleWorkerStats(c *gin.Context) {
	st, err := s.stats.Worker(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *APIServer) handleBuyerStats(c *gin.Context) {
	st, err := s.stats.Buyer(c.Request.Context(), middleware.GetEmailFromContext(c))
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, st)
}
