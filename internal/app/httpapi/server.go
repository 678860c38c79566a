// Package httpapi exposes the marketplace services over REST and WebSocket.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/Yassin6up/somoo-sub000/internal/app"
	"github.com/Yassin6up/somoo-sub000/internal/app/idempotency"
	"github.com/Yassin6up/somoo-sub000/internal/app/metrics"
	"github.com/Yassin6up/somoo-sub000/internal/app/scheduler"
	"github.com/Yassin6up/somoo-sub000/internal/auth"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
	"github.com/Yassin6up/somoo-sub000/internal/middleware"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const (
	// JobRateLimitCleanup drops idle per-caller limiters.
	JobRateLimitCleanup = "rate_limit_cleanup"

	auditCapacity = 500
	limiterIdle   = 30 * time.Minute
)

// publicPrefixes are served without a bearer token.
var publicPrefixes = []string{"/auth", "/healthz", "/metrics"}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	log     *logger.Logger
	audit   *auditLog
	started time.Time
}

// NewHandler builds the router and its middleware chain. It must be called
// before the application is started so lifecycle hooks are registered in time.
func NewHandler(application *app.Application, log *logger.Logger) (http.Handler, error) {
	if application == nil {
		return nil, fmt.Errorf("application is required")
	}
	if log == nil {
		log = logger.NewDefault("http")
	}
	cfg := application.Config

	var sink auditSink
	if path := cfg.Server.AuditLogPath; path != "" {
		fileSink, err := newFileAuditSink(path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		application.Attach(fileSink)
		sink = fileSink
	}

	h := &handler{
		app:     application,
		log:     log,
		audit:   newAuditLog(auditCapacity, sink),
		started: time.Now(),
	}

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.NewAuthMiddleware(application.Tokens, log.Named("auth"), publicPrefixes).
		AllowQueryToken("/ws").Handler)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, log.Named("ratelimit"))
		router.Use(limiter.Handler)
		err := application.Scheduler.Add(scheduler.Job{
			Name: JobRateLimitCleanup,
			Spec: "@every 10m",
			Run: func(ctx context.Context) (int, error) {
				return limiter.Cleanup(limiterIdle), nil
			},
		})
		if err != nil {
			return nil, err
		}
	}
	router.Use(h.audit.middleware)
	h.registerRoutes(router)

	cors := middleware.NewCORSMiddleware(cfg.Server.CORSOrigins)
	return metrics.InstrumentHandler(cors.Handler(router)), nil
}

func (h *handler) registerRoutes(router *mux.Router) {
	idem := idempotency.Middleware(h.app.Idempotency, h.app.Config.Marketplace.IdempotencyTTL, func(r *http.Request) string {
		return auth.UserID(r.Context())
	}, h.log.Named("idempotency"))
	once := func(fn http.HandlerFunc) http.Handler { return idem(fn) }

	// Ops
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole("admin"))
	admin.HandleFunc("/system", h.handleSystem).Methods(http.MethodGet)
	admin.HandleFunc("/audit", h.handleAudit).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/jobs/{name}/run", h.handleRunJob).Methods(http.MethodPost)

	// Users and wallets
	router.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.handleGetUser).Methods(http.MethodGet)
	router.HandleFunc("/wallet", h.handleWallet).Methods(http.MethodGet)
	router.HandleFunc("/wallet/transactions", h.handleTransactions).Methods(http.MethodGet)
	router.Handle("/wallet/deposit", once(h.handleDeposit)).Methods(http.MethodPost)
	router.Handle("/wallet/withdraw", once(h.handleWithdraw)).Methods(http.MethodPost)

	// Groups and campaigns
	router.HandleFunc("/groups", h.handleCreateGroup).Methods(http.MethodPost)
	router.HandleFunc("/groups", h.handleListGroups).Methods(http.MethodGet)
	router.HandleFunc("/groups/{id}", h.handleGetGroup).Methods(http.MethodGet)
	router.HandleFunc("/groups/{id}/members", h.handleListMembers).Methods(http.MethodGet)
	router.HandleFunc("/groups/{id}/join", h.handleJoinGroup).Methods(http.MethodPost)
	router.HandleFunc("/groups/{id}/leave", h.handleLeaveGroup).Methods(http.MethodPost)
	router.HandleFunc("/groups/{id}/members/{userID}", h.handleRemoveMember).Methods(http.MethodDelete)
	router.HandleFunc("/campaigns", h.handleCreateCampaign).Methods(http.MethodPost)
	router.HandleFunc("/campaigns", h.handleListCampaigns).Methods(http.MethodGet)
	router.HandleFunc("/campaigns/{id}", h.handleGetCampaign).Methods(http.MethodGet)
	router.HandleFunc("/campaigns/{id}/cancel", h.handleCancelCampaign).Methods(http.MethodPost)

	// Chat and proposals
	router.HandleFunc("/conversations", h.handleStartConversation).Methods(http.MethodPost)
	router.HandleFunc("/conversations", h.handleListConversations).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/messages", h.handleListMessages).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/messages", h.handleSendMessage).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}/proposals", h.handleListProposals).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}/proposals", h.handleSubmitProposal).Methods(http.MethodPost)
	router.HandleFunc("/proposals/{id}", h.handleGetProposal).Methods(http.MethodGet)
	router.Handle("/proposals/{id}/accept", once(h.handleAcceptProposal)).Methods(http.MethodPost)
	router.HandleFunc("/proposals/{id}/reject", h.handleRejectProposal).Methods(http.MethodPost)
	router.HandleFunc("/proposals/{id}/withdraw", h.handleWithdrawProposal).Methods(http.MethodPost)

	// Projects and tasks
	router.HandleFunc("/projects", h.handleListProjects).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}", h.handleGetProject).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/payouts", h.handlePayouts).Methods(http.MethodGet)
	router.Handle("/projects/{id}/complete", once(h.handleCompleteProject)).Methods(http.MethodPost)
	router.Handle("/projects/{id}/cancel", once(h.handleCancelProject)).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}/tasks", h.handleListTasks).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/tasks", h.handleCreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/mine", h.handleMyTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{id}", h.handleGetTask).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{id}/assign", h.handleAssignTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id}/unassign", h.handleUnassignTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id}/start", h.handleStartTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id}/submit", h.handleSubmitTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id}/approve", h.handleApproveTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{id}/reject", h.handleRejectTask).Methods(http.MethodPost)

	// Realtime
	router.HandleFunc("/ws", h.handleWebSocket).Methods(http.MethodGet)
}

// fail writes err and logs it when it maps to a server error.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", middleware.RequestID(r.Context())).Error("request failed")
	}
	httputil.WriteError(w, err)
}

// decode reads the JSON body into dst, writing the error response itself.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return h.decode(w, r, dst)
}

func callerID(r *http.Request) string {
	return auth.UserID(r.Context())
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func queryLimit(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func callerIdentity(r *http.Request) (auth.Identity, bool) {
	return auth.FromContext(r.Context())
}
