package httpapi

import (
	"net/http"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
)

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
}

type assignRequest struct {
	FreelancerID string `json:"freelancer_id"`
}

type submitRequest struct {
	Deliverable string `json:"deliverable"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// handleListProjects returns the caller's projects. Admins may list every
// project, narrowed by ?owner=, ?group= and ?status=.
func (h *handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var (
		list []project.Project
		err  error
	)
	if id, _ := callerIdentity(r); id.Role == "admin" {
		q := r.URL.Query()
		list, err = h.app.Projects.List(r.Context(), project.Filter{
			OwnerID: q.Get("owner"),
			GroupID: q.Get("group"),
			Status:  project.Status(q.Get("status")),
		})
	} else {
		list, err = h.app.Projects.ListForUser(r.Context(), callerID(r))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Projects.Get(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handlePayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.app.Projects.Payouts(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payouts)
}

func (h *handler) handleCompleteProject(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Projects.Complete(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"project": res.Project,
		"payouts": res.Payouts,
		"wallet":  res.OwnerWallet,
	})
}

func (h *handler) handleCancelProject(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Projects.Cancel(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"project":        res.Project,
		"wallet":         res.OwnerWallet,
		"rejected_tasks": len(res.RejectedTasks),
	})
}

func (h *handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Tasks.List(r.Context(), pathID(r), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.Create(r.Context(), pathID(r), callerID(r), req.Title, req.Description, req.Reward)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *handler) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Tasks.ListForAssignee(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tasks.Get(r.Context(), pathID(r), callerID(r))
	h.writeTask(w, r, t, err)
}

func (h *handler) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.Assign(r.Context(), pathID(r), callerID(r), req.FreelancerID)
	h.writeTask(w, r, t, err)
}

func (h *handler) handleUnassignTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tasks.Unassign(r.Context(), pathID(r), callerID(r))
	h.writeTask(w, r, t, err)
}

func (h *handler) handleStartTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tasks.Start(r.Context(), pathID(r), callerID(r))
	h.writeTask(w, r, t, err)
}

func (h *handler) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.Submit(r.Context(), pathID(r), callerID(r), req.Deliverable)
	h.writeTask(w, r, t, err)
}

func (h *handler) handleApproveTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tasks.Approve(r.Context(), pathID(r), callerID(r))
	h.writeTask(w, r, t, err)
}

func (h *handler) handleRejectTask(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.Reject(r.Context(), pathID(r), callerID(r), req.Feedback)
	h.writeTask(w, r, t, err)
}

func (h *handler) writeTask(w http.ResponseWriter, r *http.Request, t task.Task, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}
