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

type WalletHandler struct {
	accountService     service.AccountService
	transactionService service.TransactionService
	logger             *slog.Logger
}

func NewWalletHandler(accountService service.AccountService, transactionService service.TransactionService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		accountService:     accountService,
		transactionService: transactionService,
		logger:             logger,
	}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
	router.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/recipients", h.ListRecipients).Methods(http.MethodGet)
	router.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	router.HandleFunc("/recharges", h.CreateRecharge).Methods(http.MethodPost)
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "missing principal", "")
		return
	}

	balance, err := h.accountService.GetBalance(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "get balance")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.BalanceResponse{
		UserID:  userID,
		Balance: balance,
	})
}

func (h *WalletHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "missing principal", "")
		return
	}

	entries, err := h.accountService.GetHistory(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "get history")
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	u.WriteJSON(w, http.StatusOK, entries)
}

func (h *WalletHandler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "missing principal", "")
		return
	}

	users, err := h.accountService.ListRecipients(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "list recipients")
		return
	}

	recipients := make([]models.UserResponse, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, models.UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			Email:   user.Email,
			Contact: user.Contact,
		})
	}

	u.WriteJSON(w, http.StatusOK, recipients)
}

func (h *WalletHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "missing principal", "")
		return
	}

	var req models.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid create transfer request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	result, err := h.transactionService.Transfer(r.Context(), userID, req.RecipientID, req.Amount)
	if err != nil {
		h.handleServiceError(w, err, "create transfer")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.TransferResponse{
		ID:            result.Transfer.ID,
		SenderID:      result.Transfer.SenderID,
		RecipientID:   result.Transfer.RecipientID,
		Amount:        result.Transfer.Amount,
		SenderBalance: result.SenderBalance,
		CreatedAt:     result.Transfer.CreatedAt,
	})
}

func (h *WalletHandler) CreateRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "missing principal", "")
		return
	}

	var req models.RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid recharge request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	result, err := h.transactionService.Recharge(r.Context(), userID, req.Amount)
	if err != nil {
		h.handleServiceError(w, err, "create recharge")
		return
	}

	u.WriteJSON(w, http.StatusCreated, models.RechargeResponse{
		UserID:  result.UserID,
		Amount:  result.Amount,
		Balance: result.Balance,
	})
}

func (h *WalletHandler) handleServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case err == errors.ErrRecipientNotFound:
		u.WriteError(w, http.StatusNotFound, "recipient not found", "")
	case errors.IsNotFound(err):
		u.WriteError(w, http.StatusNotFound, "account not found", "")
	case errors.IsInsufficientFunds(err):
		u.WriteError(w, http.StatusBadRequest, "insufficient funds", "account does not have enough funds for this operation")
	case err == errors.ErrInvalidAmount:
		u.WriteError(w, http.StatusBadRequest, "invalid amount", err.Error())
	case err == errors.ErrInvalidRecipient:
		u.WriteError(w, http.StatusBadRequest, "invalid recipient", err.Error())
	case errors.IsValidationError(err):
		u.WriteError(w, http.StatusBadRequest, "validation error", err.Error())
	default:
		h.logger.Error("internal server error during "+action, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
