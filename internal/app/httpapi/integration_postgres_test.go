//go:build integration && postgres

package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/Yassin6up/somoo-sub000/internal/app"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/postgres"
	"github.com/Yassin6up/somoo-sub000/internal/platform/migrations"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// Runs the accept and complete flow against a migrated Postgres database.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := migrations.Up(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = dsn
	cfg.Auth.AdminEmail = ""
	application, err := app.New(cfg, app.FromStore(postgres.New(db)), logger.NewDiscard())
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

	suffix := randomSuffix(t)
	po := signup(t, handler, "owner"+suffix, "product_owner")
	lead := signup(t, handler, "lead"+suffix, "freelancer")

	po.expect(http.StatusOK, http.MethodPost, "/wallet/deposit", map[string]any{"amount": 50000}, nil)

	var grp, conv struct {
		ID string `json:"id"`
	}
	lead.expect(http.StatusCreated, http.MethodPost, "/groups", map[string]any{"name": "Crew " + suffix, "description": ""}, &grp)
	po.expect(http.StatusCreated, http.MethodPost, "/conversations", map[string]any{"group_id": grp.ID}, &conv)

	var p proposal.Proposal
	lead.expect(http.StatusCreated, http.MethodPost, "/conversations/"+conv.ID+"/proposals",
		map[string]any{"budget": 10001, "description": "odd budget", "delivery_days": 3}, &p)

	var accepted struct {
		Project project.Project `json:"project"`
	}
	po.expect(http.StatusOK, http.MethodPost, "/proposals/"+p.ID+"/accept", nil, &accepted)
	if got := accepted.Project.Shares().Total(); got != 10001 {
		t.Fatalf("split sums to %d, want 10001", got)
	}
	po.expect(http.StatusConflict, http.MethodPost, "/proposals/"+p.ID+"/accept", nil, nil)

	po.expect(http.StatusOK, http.MethodPost, "/projects/"+accepted.Project.ID+"/complete", nil, nil)

	var wal wallet.Wallet
	lead.expect(http.StatusOK, http.MethodGet, "/wallet", nil, &wal)
	if wal.Available != accepted.Project.LeaderShare+accepted.Project.MemberShare {
		t.Fatalf("leader should receive leader share plus unclaimed member pool, got %d", wal.Available)
	}
	po.expect(http.StatusOK, http.MethodGet, "/wallet", nil, &wal)
	if wal.Available != 50000-10001 || wal.Escrowed != 0 {
		t.Fatalf("unexpected owner wallet: %+v", wal)
	}
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	return uuid.NewString()[:8]
}
