package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
)

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxMembers  int    `json:"max_members,omitempty"`
}

type campaignRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      int64  `json:"budget"`
}

func (h *handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.app.Groups.Create(r.Context(), callerID(r), req.Name, req.Description, req.MaxMembers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, g)
}

// handleListGroups lists every group, or only the caller's with ?mine=true.
func (h *handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var (
		list []group.Group
		err  error
	)
	if r.URL.Query().Get("mine") == "true" {
		list, err = h.app.Groups.ListForUser(r.Context(), callerID(r))
	} else {
		list, err = h.app.Groups.List(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Groups.Get(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.app.Groups.ListMembers(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

func (h *handler) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Groups.Join(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *handler) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Groups.Leave(r.Context(), pathID(r), callerID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Groups.RemoveMember(r.Context(), pathID(r), callerID(r), mux.Vars(r)["userID"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.app.Campaigns.Create(r.Context(), callerID(r), req.Title, req.Description, req.Budget)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// handleListCampaigns accepts ?owner= and ?status= filters.
func (h *handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := campaign.Filter{OwnerID: q.Get("owner"), Status: campaign.Status(q.Get("status"))}
	if filter.OwnerID == "me" {
		filter.OwnerID = callerID(r)
	}
	list, err := h.app.Campaigns.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Get(r.Context(), pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Cancel(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
