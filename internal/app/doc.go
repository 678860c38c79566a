// Package app composes the marketplace: storage backends, domain services,
// the realtime hub and the maintenance scheduler.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models and pure rules
//	│   ├── project/        # Projects, payouts, and the revenue split
//	│   ├── proposal/       # Proposals and the structured offer message
//	│   └── ...             # Users, wallets, groups, campaigns, chat, tasks
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces, one per aggregate
//	│   ├── memory/         # Mutex-guarded maps for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business rules, one package per domain
//	├── httpapi/            # REST routes and handlers
//	├── realtime/           # WebSocket hub and event publishing
//	├── idempotency/        # Idempotency-Key replay (memory or Redis)
//	├── scheduler/          # Cron jobs for expiry and stale assignments
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Money Movement
//
// Every balance change happens inside a single storage operation:
// AcceptProposal holds the budget in escrow, CompleteProject releases it as
// leader, platform and member payouts, and CancelProject refunds it. Services
// never read a balance and write it back in two steps.
//
// # Dependency Direction
//
//	cmd/somoo/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► services/ ──► storage/ interfaces
//	      │        │
//	      │        └──► realtime.Publisher, metrics
//	      │
//	      └──► httpapi/ ──► services/
package app
