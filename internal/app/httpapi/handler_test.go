package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	app "github.com/Yassin6up/somoo-sub000/internal/app"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/idempotency"
	"github.com/Yassin6up/somoo-sub000/internal/config"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const (
	testPassword  = "correct-horse"
	adminEmail    = "admin@somoo.test"
	adminPassword = "admin-password"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{CORSOrigins: []string{"*"}},
		Auth: config.AuthConfig{
			JWTSecret:     "handler-test-secret",
			Issuer:        "somoo",
			TokenTTL:      time.Hour,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
		Marketplace: config.MarketplaceConfig{
			LeaderPercent:    30,
			PlatformPercent:  10,
			MemberPercent:    60,
			GroupMaxMembers:  10,
			ProposalTTL:      24 * time.Hour,
			AssignmentTTL:    24 * time.Hour,
			IdempotencyTTL:   time.Hour,
			ExpirySchedule:   "@every 1h",
			AssignmentSweep:  "@every 1h",
			MaxMessageLength: 4000,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	application, err := app.New(cfg, app.Stores{}, logger.NewDiscard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	application.Users.WithHashCost(4)
	handler, err := NewHandler(application, logger.NewDiscard())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })
	return handler
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	userID  string
}

func (c client) do(method, url string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(marshal(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	c.handler.ServeHTTP(resp, req)
	return resp
}

// expect performs the request, fails unless the status matches and decodes
// the body into out when out is non-nil.
func (c client) expect(status int, method, url string, body, out any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	resp := c.do(method, url, body, headers...)
	if resp.Code != status {
		c.t.Fatalf("%s %s: expected %d, got %d: %s", method, url, status, resp.Code, resp.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: decode response: %v", method, url, err)
		}
	}
	return resp
}

func signup(t *testing.T, handler http.Handler, name, role string) client {
	t.Helper()
	anon := client{t: t, handler: handler}
	email := strings.ToLower(name) + "@somoo.test"
	anon.expect(http.StatusCreated, http.MethodPost, "/auth/register", map[string]any{
		"name": name, "email": email, "password": testPassword, "role": role,
	}, nil)
	return login(t, handler, email, testPassword)
}

func login(t *testing.T, handler http.Handler, email, password string) client {
	t.Helper()
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	client{t: t, handler: handler}.expect(http.StatusOK, http.MethodPost, "/auth/login", map[string]any{
		"email": email, "password": password,
	}, &session)
	return client{t: t, handler: handler, token: session.Token, userID: session.User.ID}
}

func TestMarketplaceFlow(t *testing.T) {
	handler := newTestServer(t, testConfig())

	po := signup(t, handler, "Owner", "product_owner")
	lead := signup(t, handler, "Leader", "freelancer")
	m1 := signup(t, handler, "Member1", "freelancer")
	m2 := signup(t, handler, "Member2", "freelancer")

	// Deposits honour Idempotency-Key.
	var deposit walletResponse
	po.expect(http.StatusOK, http.MethodPost, "/wallet/deposit", map[string]any{"amount": 200000}, &deposit,
		idempotency.HeaderKey, "dep-1")
	replay := po.expect(http.StatusOK, http.MethodPost, "/wallet/deposit", map[string]any{"amount": 200000}, nil,
		idempotency.HeaderKey, "dep-1")
	if replay.Header().Get(idempotency.HeaderReplay) != "true" {
		t.Fatalf("expected replayed deposit")
	}
	var wal wallet.Wallet
	po.expect(http.StatusOK, http.MethodGet, "/wallet", nil, &wal)
	if wal.Available != 200000 {
		t.Fatalf("expected single deposit of 200000, got %d", wal.Available)
	}

	var grp struct {
		ID string `json:"id"`
	}
	lead.expect(http.StatusCreated, http.MethodPost, "/groups", map[string]any{"name": "Crew", "description": "design"}, &grp)
	m1.expect(http.StatusCreated, http.MethodPost, "/groups/"+grp.ID+"/join", nil, nil)
	m2.expect(http.StatusCreated, http.MethodPost, "/groups/"+grp.ID+"/join", nil, nil)

	var conv struct {
		ID string `json:"id"`
	}
	po.expect(http.StatusCreated, http.MethodPost, "/conversations", map[string]any{"group_id": grp.ID}, &conv)
	po.expect(http.StatusCreated, http.MethodPost, "/conversations/"+conv.ID+"/messages", map[string]any{"body": "hello team"}, nil)

	// A structured message body becomes a proposal.
	offer := proposal.Offer{Budget: 100000, Description: "landing page", DeliveryDays: 5}.Body()
	var sent messageResponse
	lead.expect(http.StatusCreated, http.MethodPost, "/conversations/"+conv.ID+"/messages", map[string]any{"body": offer}, &sent)
	if sent.Proposal == nil || sent.Proposal.Budget != 100000 {
		t.Fatalf("expected proposal from message, got %+v", sent)
	}
	var second proposal.Proposal
	lead.expect(http.StatusCreated, http.MethodPost, "/conversations/"+conv.ID+"/proposals",
		map[string]any{"budget": 150000, "description": "full site", "delivery_days": 10}, &second)

	// Members cannot propose.
	m1.expect(http.StatusForbidden, http.MethodPost, "/conversations/"+conv.ID+"/proposals",
		map[string]any{"budget": 1000, "description": "x", "delivery_days": 1}, nil)

	acceptURL := "/proposals/" + sent.Proposal.ID + "/accept"
	var accepted struct {
		Project      project.Project `json:"project"`
		Wallet       wallet.Wallet   `json:"wallet"`
		AutoRejected int             `json:"auto_rejected"`
	}
	po.expect(http.StatusOK, http.MethodPost, acceptURL, nil, &accepted, idempotency.HeaderKey, "accept-1")
	if accepted.Project.LeaderShare != 30000 || accepted.Project.PlatformShare != 10000 || accepted.Project.MemberShare != 60000 {
		t.Fatalf("unexpected split: %+v", accepted.Project.Shares())
	}
	if accepted.Wallet.Available != 100000 || accepted.Wallet.Escrowed != 100000 {
		t.Fatalf("unexpected owner wallet after accept: %+v", accepted.Wallet)
	}
	if accepted.AutoRejected != 1 {
		t.Fatalf("expected the competing proposal to be rejected, got %d", accepted.AutoRejected)
	}
	replay = po.expect(http.StatusOK, http.MethodPost, acceptURL, nil, nil, idempotency.HeaderKey, "accept-1")
	if replay.Header().Get(idempotency.HeaderReplay) != "true" {
		t.Fatalf("expected replayed accept")
	}
	// Without the key a second accept is a conflict, not a second debit.
	po.expect(http.StatusConflict, http.MethodPost, acceptURL, nil, nil)
	po.expect(http.StatusOK, http.MethodGet, "/wallet", nil, &wal)
	if wal.Available != 100000 {
		t.Fatalf("owner debited more than once: %+v", wal)
	}

	var rejected proposal.Proposal
	po.expect(http.StatusOK, http.MethodGet, "/proposals/"+second.ID, nil, &rejected)
	if rejected.Status != proposal.StatusRejected {
		t.Fatalf("expected competing proposal rejected, got %s", rejected.Status)
	}

	projectID := accepted.Project.ID
	for _, member := range []client{m1, m2} {
		var tk task.Task
		lead.expect(http.StatusCreated, http.MethodPost, "/projects/"+projectID+"/tasks",
			map[string]any{"title": "section", "description": "build it", "reward": 30000}, &tk)
		lead.expect(http.StatusOK, http.MethodPost, "/tasks/"+tk.ID+"/assign", map[string]any{"freelancer_id": member.userID}, nil)
		member.expect(http.StatusOK, http.MethodPost, "/tasks/"+tk.ID+"/start", nil, nil)
		member.expect(http.StatusOK, http.MethodPost, "/tasks/"+tk.ID+"/submit", map[string]any{"deliverable": "https://files.test/" + member.userID}, nil)
		lead.expect(http.StatusOK, http.MethodPost, "/tasks/"+tk.ID+"/approve", nil, &tk)
		if tk.Status != task.StatusApproved {
			t.Fatalf("expected approved task, got %s", tk.Status)
		}
	}
	var mine []task.Task
	m1.expect(http.StatusOK, http.MethodGet, "/tasks/mine", nil, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected one task for member, got %d", len(mine))
	}

	// Only the owner may complete.
	lead.expect(http.StatusForbidden, http.MethodPost, "/projects/"+projectID+"/complete", nil, nil)
	po.expect(http.StatusOK, http.MethodPost, "/projects/"+projectID+"/complete", nil, nil, idempotency.HeaderKey, "complete-1")

	var payouts []project.Payout
	m1.expect(http.StatusOK, http.MethodGet, "/projects/"+projectID+"/payouts", nil, &payouts)
	var total int64
	for _, p := range payouts {
		total += p.Amount
	}
	if total != 100000 {
		t.Fatalf("payouts sum to %d, want the full budget", total)
	}

	for _, tc := range []struct {
		who  client
		want int64
	}{{lead, 30000}, {m1, 30000}, {m2, 30000}, {po, 100000}} {
		tc.who.expect(http.StatusOK, http.MethodGet, "/wallet", nil, &wal)
		if wal.Available != tc.want {
			t.Fatalf("user %s: expected %d available, got %d", tc.who.userID, tc.want, wal.Available)
		}
	}
}

func TestAcceptRequiresFunds(t *testing.T) {
	handler := newTestServer(t, testConfig())
	po := signup(t, handler, "Owner", "product_owner")
	lead := signup(t, handler, "Leader", "freelancer")

	var grp, conv struct {
		ID string `json:"id"`
	}
	lead.expect(http.StatusCreated, http.MethodPost, "/groups", map[string]any{"name": "Crew", "description": ""}, &grp)
	po.expect(http.StatusCreated, http.MethodPost, "/conversations", map[string]any{"group_id": grp.ID}, &conv)
	var p proposal.Proposal
	lead.expect(http.StatusCreated, http.MethodPost, "/conversations/"+conv.ID+"/proposals",
		map[string]any{"budget": 5000, "description": "logo", "delivery_days": 2}, &p)

	resp := po.expect(http.StatusUnprocessableEntity, http.MethodPost, "/proposals/"+p.ID+"/accept", nil, nil)
	if !strings.Contains(resp.Body.String(), "INSUFFICIENT_FUNDS") {
		t.Fatalf("expected insufficient funds code, got %s", resp.Body.String())
	}
	lead.expect(http.StatusOK, http.MethodPost, "/proposals/"+p.ID+"/withdraw", nil, nil)
}

func TestHandlerAuthRequired(t *testing.T) {
	handler := newTestServer(t, testConfig())
	anon := client{t: t, handler: handler}

	anon.expect(http.StatusUnauthorized, http.MethodGet, "/wallet", nil, nil)
	anon.expect(http.StatusOK, http.MethodGet, "/healthz", nil, nil)
	anon.expect(http.StatusUnauthorized, http.MethodPost, "/auth/login", map[string]any{
		"email": "nobody@somoo.test", "password": "whatever-pass",
	}, nil)
	anon.expect(http.StatusBadRequest, http.MethodPost, "/auth/register", map[string]any{"unexpected": true}, nil)

	fl := signup(t, handler, "Worker", "freelancer")
	fl.expect(http.StatusForbidden, http.MethodGet, "/admin/system", nil, nil)
	fl.expect(http.StatusForbidden, http.MethodPost, "/campaigns", map[string]any{"title": "t", "description": "d", "budget": 10}, nil)
}

func TestAdminEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AuditLogPath = filepath.Join(t.TempDir(), "audit.jsonl")
	handler := newTestServer(t, cfg)

	po := signup(t, handler, "Owner", "product_owner")
	po.expect(http.StatusCreated, http.MethodPost, "/campaigns", map[string]any{"title": "Launch", "description": "d", "budget": 500}, nil)

	admin := login(t, handler, adminEmail, adminPassword)
	var sys systemResponse
	admin.expect(http.StatusOK, http.MethodGet, "/admin/system", nil, &sys)
	if sys.Goroutines == 0 {
		t.Fatalf("expected runtime stats, got %+v", sys)
	}

	var entries []auditEntry
	admin.expect(http.StatusOK, http.MethodGet, "/admin/audit?limit=10", nil, &entries)
	found := false
	for _, e := range entries {
		if e.Route == "/campaigns" && e.User == po.userID && e.Status == http.StatusCreated {
			found = true
		}
	}
	if !found {
		t.Fatalf("campaign creation not audited: %+v", entries)
	}
	data, err := os.ReadFile(cfg.Server.AuditLogPath)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if !strings.Contains(string(data), `"route":"/campaigns"`) {
		t.Fatalf("audit file missing entry: %s", data)
	}

	var run map[string]any
	admin.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/admin/jobs/%s/run", app.JobExpireProposals), nil, &run)
	admin.expect(http.StatusNotFound, http.MethodPost, "/admin/jobs/nope/run", nil, nil)
}

func TestRateLimitPerCaller(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	handler := newTestServer(t, cfg)
	anon := client{t: t, handler: handler}

	anon.expect(http.StatusOK, http.MethodGet, "/healthz", nil, nil)
	anon.expect(http.StatusOK, http.MethodGet, "/healthz", nil, nil)
	resp := anon.expect(http.StatusTooManyRequests, http.MethodGet, "/healthz", nil, nil)
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func marshal(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}
