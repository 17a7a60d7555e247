package services

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/wondough/bank/internal/models"
)

// TransactionService exposes the ledger over HTTP. Every handler expects the
// auth middleware to have resolved the caller's access token to a user ID.
type TransactionService struct {
	ledger    *LedgerService
	validator *ValidationHelper
}

// TransferRequest represents a new transfer payload
type TransferRequest struct {
	Recipient   int     `json:"recipient" validate:"min=0"`
	Description string  `json:"description" validate:"required,max=200"`
	Amount      float64 `json:"amount"`
}

// TransactionsResponse lists a user's ledger entries with the derived balance
type TransactionsResponse struct {
	Balance      float64              `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
}

func NewTransactionService(ledger *LedgerService) *TransactionService {
	return &TransactionService{
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// ListTransactions returns the caller's transactions, most recent first, and
// their balance.
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	balance, transactions, err := ts.ledger.BalanceOf(r.Context(), userID)
	if err != nil {
		log.Printf("[LEDGER] Failed to list transactions for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransactionsResponse{Balance: balance, Transactions: transactions})
}

// CreateTransfer records a transfer from the caller to the requested
// recipient. Rejected transfers (negative amount, overdraft, unknown
// recipient) leave the ledger untouched.
func (ts *TransactionService) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req TransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	recorded, err := ts.ledger.RecordTransfer(r.Context(), userID, req.Recipient, req.Description, req.Amount)
	if err != nil {
		log.Printf("[LEDGER] Transfer failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to record transfer", http.StatusInternalServerError, nil)
		return
	}
	if !recorded {
		log.Printf("[LEDGER] Transfer rejected for user %d (amount %.2f to %d)", userID, req.Amount, req.Recipient)
		SendErrorResponse(w, "Transfer rejected", http.StatusBadRequest, nil)
		return
	}

	log.Printf("[LEDGER] Transfer recorded: %.2f from user %d to user %d", req.Amount, userID, req.Recipient)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

// callerID pulls the authenticated user ID placed in the request context by
// the auth middleware.
func callerID(r *http.Request) (int, bool) {
	userID, ok := r.Context().Value("userID").(int)
	return userID, ok
}
