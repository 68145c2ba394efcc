package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/models"
	"github.com/workloy/workloy/internal/user"
)

// handleRegister handles first-sign-in registration. The account email always
// comes from the verified token, never from the request body.
func (s *APIServer) handleRegister(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}
	req.Email = middleware.GetEmailFromContext(c)

	resp, err := s.users.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, user.ErrInvalidRole) {
			respondError(c, apierrors.NewInvalidArgumentError("Role must be Worker or Buyer"))
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	status := http.StatusOK
	if resp.Inserted {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (s *APIServer) handleListUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *APIServer) handleGetUser(c *gin.Context) {
	u, err := s.users.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *APIServer) handleGetRole(c *gin.Context) {
	role, err := s.users.GetRole(c.Request.Context(), c.Param("email"))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

type updateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// handleUpdateProfile lets a caller edit their own profile only
func (s *APIServer) handleUpdateProfile(c *gin.Context) {
	email := c.Param("email")
	if email != middleware.GetEmailFromContext(c) {
		respondError(c, apierrors.ErrForbiddenError)
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	u, err := s.users.UpdateProfile(c.Request.Context(), email, req.Name, req.ImageURL)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *APIServer) handleUpdateRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid user ID"))
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	if err := s.users.UpdateRole(c.Request.Context(), userID, models.Role(req.Role)); err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			respondError(c, apierrors.ErrUserNotFoundError)
		case errors.Is(err, user.ErrInvalidRole):
			respondError(c, apierrors.NewInvalidArgumentError("Role must be Worker, Buyer, or Admin"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (s *APIServer) handleDeleteUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidArgumentError("Invalid user ID"))
		return
	}

	if err := s.users.Delete(c.Request.Context(), userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// handleGetCoins returns the caller's own balance
func (s *APIServer) handleGetCoins(c *gin.Context) {
	email := middleware.GetEmailFromContext(c)

	balance, err := s.ledger.Balance(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, balance)
}
