package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/internal/usecase"
	"github.com/kardiguemagassa/paymybuddy/pkg/response"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

type LedgerRestHandler struct {
	accountUC *usecase.AccountUsecase
	txUC      *usecase.TransactionUsecase
	connUC    *usecase.ConnectionUsecase
	fx        *service.FXService
	log       *zap.Logger
}

func NewLedgerRestHandler(
	accountUC *usecase.AccountUsecase,
	txUC *usecase.TransactionUsecase,
	connUC *usecase.ConnectionUsecase,
	fx *service.FXService,
	log *zap.Logger,
) *LedgerRestHandler {
	return &LedgerRestHandler{
		accountUC: accountUC,
		txUC:      txUC,
		connUC:    connUC,
		fx:        fx,
		log:       log,
	}
}

func (h *LedgerRestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", h.CreateAccount)
		r.Get("/accounts", h.ListAccounts)
		r.Post("/transfers", h.Transfer)
		r.Get("/currencies", h.ListCurrencies)

		r.Route("/accounts/{email}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Get("/transactions", h.GetTransactions)
			r.Post("/balance", h.AddBalance)
			r.Get("/connections", h.GetConnections)
			r.Get("/connections/potential", h.GetPotentialConnections)
			r.Post("/connections", h.AddConnection)
			r.Put("/connections", h.ReplaceConnection)
			r.Delete("/connections/{peerEmail}", h.RemoveConnection)
		})
	})
}

// Monetary amounts are rounded to two decimals for display only;
// stored balances keep full precision.

type accountJSON struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func toAccountJSON(a *domain.Account) accountJSON {
	return accountJSON{
		ID:      a.ID,
		Email:   a.Email,
		Name:    a.Name,
		Balance: a.Balance.StringFixed(2),
	}
}

type transactionJSON struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at"`
}

func toTransactionJSON(t *domain.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		Description: t.Description,
		Amount:      t.Amount.StringFixed(2),
		Fee:         t.Fee.StringFixed(2),
		Currency:    t.Currency,
		CreatedAt:   t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type createAccountJSON struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *LedgerRestHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in createAccountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountUC.Create(r.Context(), in.Email, in.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, toAccountJSON(account))
}

func (h *LedgerRestHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountUC.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountJSON(a))
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *LedgerRestHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	account, err := h.accountUC.Get(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, toAccountJSON(account))
}

type transferJSON struct {
	SenderEmail   string `json:"sender_email"`
	ReceiverEmail string `json:"receiver_email"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
}

func (h *LedgerRestHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var in transferJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid amount")
		return
	}

	txn, err := h.txUC.Transfer(r.Context(), in.SenderEmail, in.ReceiverEmail, amount, in.Currency, in.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, toTransactionJSON(txn))
}

func (h *LedgerRestHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	page, err := h.txUC.History(r.Context(), email, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]transactionJSON, 0, len(page.Transactions))
	for _, t := range page.Transactions {
		items = append(items, toTransactionJSON(t))
	}
	response.JSON(w, http.StatusOK, response.Page{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

type addBalanceJSON struct {
	Amount string `json:"amount"`
	Random bool   `json:"random"`
}

func (h *LedgerRestHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var in addBalanceJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var amount *decimal.Decimal
	if !in.Random {
		if in.Amount == "" {
			response.Error(w, http.StatusBadRequest, "amount is required")
			return
		}
		parsed, err := decimal.NewFromString(in.Amount)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid amount")
			return
		}
		amount = &parsed
	}

	added, balance, err := h.txUC.AddBalance(r.Context(), email, amount, in.Random)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{
		"added":   added.StringFixed(2),
		"balance": balance.StringFixed(2),
	})
}

func (h *LedgerRestHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	peers, err := h.connUC.Connections(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, peers)
}

func (h *LedgerRestHandler) GetPotentialConnections(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	candidates, err := h.connUC.PotentialConnections(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, candidates)
}

type addConnectionJSON struct {
	PeerEmail string `json:"peer_email"`
}

func (h *LedgerRestHandler) AddConnection(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var in addConnectionJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.connUC.Add(r.Context(), email, in.PeerEmail); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]string{"peer_email": in.PeerEmail})
}

type replaceConnectionJSON struct {
	OldPeerEmail string `json:"old_peer_email"`
	NewPeerEmail string `json:"new_peer_email"`
}

func (h *LedgerRestHandler) ReplaceConnection(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var in replaceConnectionJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.connUC.Replace(r.Context(), email, in.OldPeerEmail, in.NewPeerEmail); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"peer_email": in.NewPeerEmail})
}

func (h *LedgerRestHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	peerEmail := chi.URLParam(r, "peerEmail")

	if err := h.connUC.Remove(r.Context(), email, peerEmail); err != nil {
		h.writeError(w, err)
		return
	}
	// Removal is idempotent: absent edges report success too.
	response.JSON(w, http.StatusOK, map[string]string{"peer_email": peerEmail})
}

type currencyJSON struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Rate   string `json:"rate"`
}

func (h *LedgerRestHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	supported := h.fx.Supported()

	out := make([]currencyJSON, 0, len(supported))
	for _, c := range supported {
		out = append(out, currencyJSON{Code: c.Code, Symbol: c.Symbol, Rate: c.Rate.String()})
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *LedgerRestHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrAccountNotFound),
		errors.Is(err, xerrors.ErrConnectionNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, err.Error())

	case errors.Is(err, xerrors.ErrInsufficientBalance):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, xerrors.ErrEmailAlreadyInUse),
		errors.Is(err, xerrors.ErrConnectionExists):
		response.Error(w, http.StatusConflict, err.Error())

	case errors.Is(err, xerrors.ErrLedgerBusy):
		w.Header().Set("Retry-After", "1")
		response.Error(w, http.StatusServiceUnavailable, err.Error())

	case errors.Is(err, xerrors.ErrPartiesRequired),
		errors.Is(err, xerrors.ErrSelfTransfer),
		errors.Is(err, xerrors.ErrNonPositiveAmount),
		errors.Is(err, xerrors.ErrInvalidCurrency),
		errors.Is(err, xerrors.ErrUnsupportedCurrency),
		errors.Is(err, xerrors.ErrNotConnected),
		errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrSelfConnection),
		errors.Is(err, xerrors.ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, err.Error())

	default:
		h.log.Error("unhandled request error", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
