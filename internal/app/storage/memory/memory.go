package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// Compound escrow operations run under the write lock, so they are atomic
// with respect to every other call.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	usersByEmail  map[string]string
	wallets       map[string]wallet.Wallet
	transactions  map[string][]wallet.Transaction
	groups        map[string]group.Group
	members       map[string]map[string]group.Member
	campaigns     map[string]campaign.Campaign
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	proposals     map[string]proposal.Proposal
	projects      map[string]project.Project
	payouts       map[string][]project.Payout
	tasks         map[string]task.Task
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		wallets:       make(map[string]wallet.Wallet),
		transactions:  make(map[string][]wallet.Transaction),
		groups:        make(map[string]group.Group),
		members:       make(map[string]map[string]group.Member),
		campaigns:     make(map[string]campaign.Campaign),
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		proposals:     make(map[string]proposal.Proposal),
		projects:      make(map[string]project.Project),
		payouts:       make(map[string][]project.Payout),
		tasks:         make(map[string]task.Task),
	}
}

func newID() string { return uuid.NewString() }

func now() time.Time { return time.Now().UTC() }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneTask(t task.Task) task.Task {
	t.AssignedAt = cloneTime(t.AssignedAt)
	return t
}

func cloneProposal(p proposal.Proposal) proposal.Proposal {
	p.DecidedAt = cloneTime(p.DecidedAt)
	return p
}

func cloneProject(p project.Project) project.Project {
	p.CompletedAt = cloneTime(p.CompletedAt)
	return p
}

func sortByCreated[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).Before(created(items[j]))
	})
}
