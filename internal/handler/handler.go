package handler

import (
	"context"
	"iter"
	"net/http"
	"strconv"

	"atmledger/internal/model"
	"atmledger/internal/service"
	"atmledger/pkg/money"
	"atmledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Ledger is the service surface the HTTP layer needs.
type Ledger interface {
	GetAccount(ctx context.Context, number string) (*model.Account, error)
	GetBalance(ctx context.Context, number string) (int64, error)
	Authenticate(ctx context.Context, number, pin string) (*model.Account, error)
	Deposit(ctx context.Context, number string, amount int64) (int64, error)
	Withdraw(ctx context.Context, number string, amount int64, pin string) (int64, error)
	Transfer(ctx context.Context, origin, destination string, amount int64, pin string) (int64, error)
	ChangePin(ctx context.Context, number, currentPin, newPin string) error
	BlockAccount(ctx context.Context, number, reason string) error
	ListMovements(ctx context.Context, number string, limit int) (iter.Seq2[model.Movement, error], error)
	GetMovementReceipt(ctx context.Context, id int64) (*model.Movement, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// ============================================================
// Authentication and reads
// ============================================================

// Login checks a pin and returns the account summary.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	account, err := h.ledger.Authenticate(c.Request.Context(), req.AccountNumber, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toAccountSummary(account))
}

// GET /api/v1/accounts/:number
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.ledger.GetAccount(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toAccountSummary(account))
}

// GET /api/v1/accounts/:number/balance
func (h *Handler) GetBalance(c *gin.Context) {
	number := c.Param("number")
	balance, err := h.ledger.GetBalance(c.Request.Context(), number)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, BalanceResponse{AccountNumber: number, Balance: money.Amount(balance)})
}

// ============================================================
// Money movement
// ============================================================

// POST /api/v1/accounts/:number/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	number := c.Param("number")
	balance, err := h.ledger.Deposit(c.Request.Context(), number, req.Amount.Minor())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, BalanceResponse{AccountNumber: number, Balance: money.Amount(balance)})
}

// POST /api/v1/accounts/:number/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	number := c.Param("number")
	balance, err := h.ledger.Withdraw(c.Request.Context(), number, req.Amount.Minor(), req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, BalanceResponse{AccountNumber: number, Balance: money.Amount(balance)})
}

// POST /api/v1/transfers
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	balance, err := h.ledger.Transfer(c.Request.Context(),
		req.OriginAccount, req.DestinationAccount, req.Amount.Minor(), req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, TransferResponse{
		OriginAccount:      req.OriginAccount,
		DestinationAccount: req.DestinationAccount,
		Amount:             req.Amount,
		Balance:            money.Amount(balance),
	})
}

// ============================================================
// Account administration
// ============================================================

// PUT /api/v1/accounts/:number/pin
func (h *Handler) ChangePin(c *gin.Context) {
	var req ChangePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.ledger.ChangePin(c.Request.Context(), c.Param("number"), req.CurrentPin, req.NewPin); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"account_number": c.Param("number"), "pin_changed": true})
}

// PUT /api/v1/accounts/:number/block
func (h *Handler) BlockAccount(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	number := c.Param("number")
	if err := h.ledger.BlockAccount(c.Request.Context(), number, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"account_number": number, "status": model.AccountStatusBlocked})
}

// ============================================================
// History and receipts
// ============================================================

// GET /api/v1/accounts/:number/movements?limit=10
func (h *Handler) ListMovements(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.ParamError(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	number := c.Param("number")
	seq, err := h.ledger.ListMovements(c.Request.Context(), number, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	movements := make([]MovementResponse, 0)
	for m, err := range seq {
		if err != nil {
			writeError(c, err)
			return
		}
		movements = append(movements, toMovementResponse(&m))
	}
	response.Success(c, HistoryResponse{AccountNumber: number, Movements: movements})
}

// GET /api/v1/receipts/:id
func (h *Handler) GetReceipt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusNotFound, response.CodeResourceNotFound, string(service.KindNotFound), "movement not found")
		return
	}

	m, err := h.ledger.GetMovementReceipt(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toMovementResponse(m))
}

// ============================================================
// Health
// ============================================================

// GET /health
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /health/ready
func (h *Handler) Ready(c *gin.Context) {
	if err := h.ledger.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
