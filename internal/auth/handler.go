// backend/internal/auth/handler.go
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/logger"
)

type Handler struct {
	service *Service
	log     *logger.Logger
	verbose bool
}

func NewHandler(service *Service, log *logger.Logger, verbose bool) *Handler {
	return &Handler{service: service, log: log, verbose: verbose}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.log.Info("login rejected", "username", req.Username)
		apierr.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		h.log.Error("login", "username", req.Username, "error", err)
		apierr.Write(w, err, "Login failed", h.verbose)
		return
	}

	apierr.JSON(w, http.StatusOK, map[string]string{"token": token})
}

// Register creates another operator. It is mounted behind the JWT guard.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	op := &models.Operator{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	err := h.service.Register(r.Context(), op)
	if errors.Is(err, ErrUsernameTaken) {
		apierr.JSON(w, http.StatusConflict, map[string]string{"error": "Username already exists"})
		return
	}
	if err != nil {
		h.log.Error("register operator", "username", req.Username, "error", err)
		apierr.Write(w, err, "Registration failed", h.verbose)
		return
	}

	h.log.Info("operator registered", "username", op.Username, "by", OperatorFrom(r.Context()).Username)
	apierr.JSON(w, http.StatusCreated, op)
}
