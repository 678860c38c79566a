package httpapi

import (
	"net/http"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
)

type conversationRequest struct {
	GroupID    string `json:"group_id"`
	CampaignID string `json:"campaign_id,omitempty"`
}

type messageRequest struct {
	Body string `json:"body"`
}

// messageResponse carries either the stored chat message or, when the body
// was a structured offer, the proposal it created.
type messageResponse struct {
	Message  *chat.Message      `json:"message,omitempty"`
	Proposal *proposal.Proposal `json:"proposal,omitempty"`
}

type proposalRequest struct {
	Budget       int64  `json:"budget"`
	Description  string `json:"description"`
	DeliveryDays int    `json:"delivery_days"`
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if !h.decode(w, r, &req) {
		return
	}
	conv, err := h.app.Chat.StartConversation(r.Context(), callerID(r), req.GroupID, req.CampaignID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, conv)
}

func (h *handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Chat.ListConversations(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Chat.ListMessages(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if proposal.IsProposalMessage(req.Body) {
		p, err := h.app.Proposals.SubmitMessage(r.Context(), pathID(r), callerID(r), req.Body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, messageResponse{Proposal: &p})
		return
	}
	msg, err := h.app.Chat.SendMessage(r.Context(), pathID(r), callerID(r), req.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, messageResponse{Message: &msg})
}

func (h *handler) handleListProposals(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Proposals.ListForConversation(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if !h.decode(w, r, &req) {
		return
	}
	offer := proposal.Offer{
		Type:         proposal.MessageType,
		Budget:       req.Budget,
		Description:  req.Description,
		DeliveryDays: req.DeliveryDays,
	}
	p, err := h.app.Proposals.Submit(r.Context(), pathID(r), callerID(r), offer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Get(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handleAcceptProposal(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Proposals.Accept(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"proposal":      res.Proposal,
		"project":       res.Project,
		"wallet":        res.OwnerWallet,
		"auto_rejected": len(res.AutoRejected),
	})
}

func (h *handler) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	p, err := h.app.Proposals.Reject(r.Context(), pathID(r), callerID(r), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handleWithdrawProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Proposals.Withdraw(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.app.Hub.ServeWS(w, r, callerID(r))
}
