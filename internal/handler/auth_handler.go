package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
	"github.com/nkacou/walletd/internal/service"
	u "github.com/nkacou/walletd/internal/utils"
)

type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid register request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "register")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.UserResponse{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Contact: user.Contact,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid login request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	user, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err, "login")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.logger.Error("failed to generate token", "user_id", user.ID, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.LoginResponse{Token: token})
}

func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.IsDuplicateIdentity(err):
		u.WriteError(w, http.StatusConflict, "email or contact already registered", "")
	case errors.IsInvalidCredentials(err):
		// Deliberately generic: never reveal which credential was wrong.
		u.WriteError(w, http.StatusUnauthorized, "invalid credentials", "")
	case errors.IsValidationError(err):
		u.WriteError(w, http.StatusBadRequest, "validation error", err.Error())
	default:
		h.logger.Error("internal server error during "+action, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
