package httpapi

import (
	"net/http"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
)

type registerRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     user.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type amountRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

type walletResponse struct {
	Wallet      wallet.Wallet      `json:"wallet"`
	Transaction wallet.Transaction `json:"transaction"`
}

func (h *handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.app.Users.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.app.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleWallet(w http.ResponseWriter, r *http.Request) {
	wal, err := h.app.Wallets.EnsureWallet(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wal)
}

func (h *handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Wallets.ListTransactions(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, txs)
}

func (h *handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	wal, tx, err := h.app.Wallets.Deposit(r.Context(), callerID(r), req.Amount, req.Reference)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, walletResponse{Wallet: wal, Transaction: tx})
}

func (h *handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	wal, tx, err := h.app.Wallets.Withdraw(r.Context(), callerID(r), req.Amount, req.Reference)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, walletResponse{Wallet: wal, Transaction: tx})
}
