package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/idempotency"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/scheduler"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/campaigns"
	chatsvc "github.com/Yassin6up/somoo-sub000/internal/app/services/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/groups"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/projects"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/proposals"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/tasks"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/users"
	"github.com/Yassin6up/somoo-sub000/internal/app/services/wallets"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage/memory"
	"github.com/Yassin6up/somoo-sub000/internal/app/system"
	"github.com/Yassin6up/somoo-sub000/internal/auth"
	"github.com/Yassin6up/somoo-sub000/internal/config"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const (
	JobExpireProposals   = "expire_proposals"
	JobReleaseAssignment = "release_assignments"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users     storage.UserStore
	Wallets   storage.WalletStore
	Groups    storage.GroupStore
	Campaigns storage.CampaignStore
	Chat      storage.ChatStore
	Proposals storage.ProposalStore
	Projects  storage.ProjectStore
	Tasks     storage.TaskStore
}

// FromStore fills every slot from one complete backend.
func FromStore(s storage.Store) Stores {
	return Stores{
		Users:     s,
		Wallets:   s,
		Groups:    s,
		Campaigns: s,
		Chat:      s,
		Proposals: s,
		Projects:  s,
		Tasks:     s,
	}
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Config      *config.Config
	Tokens      *auth.TokenManager
	Hub         *realtime.Hub
	Scheduler   *scheduler.Scheduler
	Idempotency idempotency.Store

	Users     *users.Service
	Wallets   *wallets.Service
	Groups    *groups.Service
	Campaigns *campaigns.Service
	Chat      *chatsvc.Service
	Proposals *proposals.Service
	Projects  *projects.Service
	Tasks     *tasks.Service
}

// New builds a fully initialised application with the provided stores.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Wallets == nil {
		stores.Wallets = mem
	}
	if stores.Groups == nil {
		stores.Groups = mem
	}
	if stores.Campaigns == nil {
		stores.Campaigns = mem
	}
	if stores.Chat == nil {
		stores.Chat = mem
	}
	if stores.Proposals == nil {
		stores.Proposals = mem
	}
	if stores.Projects == nil {
		stores.Projects = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}

	mc := cfg.Marketplace
	policy := project.Policy{
		LeaderPercent:   mc.LeaderPercent,
		PlatformPercent: mc.PlatformPercent,
		MemberPercent:   mc.MemberPercent,
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("revenue split policy: %w", err)
	}

	manager := system.NewManager(log.Named("system"))
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	hub := realtime.NewHub(cfg.Server.CORSOrigins, log.Named("realtime"))

	userService := users.New(stores.Users, stores.Wallets, tokens, log.Named("users"))
	walletService := wallets.New(stores.Wallets, hub, log.Named("wallets"))
	groupService := groups.New(stores.Users, stores.Groups, mc.GroupMaxMembers, log.Named("groups"))
	campaignService := campaigns.New(stores.Users, stores.Campaigns, log.Named("campaigns"))
	chatService := chatsvc.New(chatsvc.Stores{
		Users:     stores.Users,
		Groups:    stores.Groups,
		Campaigns: stores.Campaigns,
		Chat:      stores.Chat,
	}, hub, mc.MaxMessageLength, log.Named("chat"))
	proposalService := proposals.New(stores.Groups, stores.Proposals, chatService, policy, hub, log.Named("proposals"),
		proposals.WithTTL(mc.ProposalTTL))
	projectService := projects.New(stores.Groups, stores.Projects, hub, log.Named("projects"))
	taskService := tasks.New(groupService, stores.Projects, stores.Tasks, hub, log.Named("tasks"),
		tasks.WithAssignmentTTL(mc.AssignmentTTL))

	hub.SetAuthorizer(chatService.CanAccess)

	var idem idempotency.Store = idempotency.NewMemoryStore()
	manager.Register(hub)
	if cfg.Redis.Enabled() {
		redisStore := idempotency.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), "")
		idem = redisStore
		manager.Register(redisStore)
	}

	sched := scheduler.New(log.Named("scheduler"))
	jobs := []scheduler.Job{
		{Name: JobExpireProposals, Spec: mc.ExpirySchedule, Timeout: 30 * time.Second, Run: proposalService.ExpireStale},
		{Name: JobReleaseAssignment, Spec: mc.AssignmentSweep, Timeout: 30 * time.Second, Run: taskService.ReleaseStale},
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return nil, err
		}
	}
	manager.Register(sched)

	return &Application{
		manager:     manager,
		log:         log,
		Config:      cfg,
		Tokens:      tokens,
		Hub:         hub,
		Scheduler:   sched,
		Idempotency: idem,
		Users:       userService,
		Wallets:     walletService,
		Groups:      groupService,
		Campaigns:   campaignService,
		Chat:        chatService,
		Proposals:   proposalService,
		Projects:    projectService,
		Tasks:       taskService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start seeds the configured administrator and begins all registered
// services.
func (a *Application) Start(ctx context.Context) error {
	if email := a.Config.Auth.AdminEmail; email != "" {
		if _, err := a.Users.EnsureAdmin(ctx, email, a.Config.Auth.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Services lists the lifecycle-managed components in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}
