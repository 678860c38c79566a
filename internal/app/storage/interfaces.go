package storage

import (
	"context"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/campaign"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/chat"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/group"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/project"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/proposal"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/task"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/user"
	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// WalletStore persists wallets and their ledger. Credit and Debit adjust the
// available balance and append a ledger entry in one step.
type WalletStore interface {
	EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, error)
	GetWallet(ctx context.Context, userID string) (wallet.Wallet, error)
	ListTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error)
	Credit(ctx context.Context, entry LedgerEntry) (wallet.Wallet, wallet.Transaction, error)
	Debit(ctx context.Context, entry LedgerEntry) (wallet.Wallet, wallet.Transaction, error)
}

// LedgerEntry describes a single balance movement.
type LedgerEntry struct {
	UserID      string
	Type        wallet.TxType
	Amount      int64
	ReferenceID string
	Note        string
}

// GroupStore persists groups and memberships.
type GroupStore interface {
	// CreateGroup inserts the group and its leader membership.
	CreateGroup(ctx context.Context, g group.Group) (group.Group, error)
	GetGroup(ctx context.Context, id string) (group.Group, error)
	ListGroups(ctx context.Context) ([]group.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]group.Group, error)
	GetMember(ctx context.Context, groupID, userID string) (group.Member, error)
	ListMembers(ctx context.Context, groupID string) ([]group.Member, error)
	// AddMember enforces the group capacity.
	AddMember(ctx context.Context, m group.Member) (group.Member, error)
	// RemoveMember fails while the user holds an active task in one of the
	// group's projects.
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// CampaignStore persists campaigns.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error)
	GetCampaign(ctx context.Context, id string) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, filter campaign.Filter) ([]campaign.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, fn func(*campaign.Campaign) error) (campaign.Campaign, error)
}

// ChatStore persists conversations and messages.
type ChatStore interface {
	// EnsureConversation returns the existing conversation for the
	// (owner, group, campaign) triple or creates it.
	EnsureConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, bool, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error)
	CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
}

// ProposalStore persists proposals and runs the escrow hold on acceptance.
type ProposalStore interface {
	// CreateProposal stores the proposal together with the chat message
	// that carries it.
	CreateProposal(ctx context.Context, p proposal.Proposal, msg chat.Message) (proposal.Proposal, chat.Message, error)
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	ListProposals(ctx context.Context, conversationID string) ([]proposal.Proposal, error)
	UpdateProposal(ctx context.Context, id string, fn func(*proposal.Proposal) error) (proposal.Proposal, error)
	// AcceptProposal atomically debits the owner, escrows the budget, creates
	// the funded project and closes the competing proposals.
	AcceptProposal(ctx context.Context, params AcceptProposalParams) (AcceptProposalResult, error)
	ExpirePendingProposals(ctx context.Context, createdBefore time.Time) ([]proposal.Proposal, error)
}

type AcceptProposalParams struct {
	ProposalID string
	OwnerID    string
	Policy     project.Policy
}

type AcceptProposalResult struct {
	Proposal     proposal.Proposal
	Project      project.Project
	OwnerWallet  wallet.Wallet
	AutoRejected []proposal.Proposal
}

// ProjectStore persists projects and settles their escrow.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (project.Project, error)
	ListProjects(ctx context.Context, filter project.Filter) ([]project.Project, error)
	UpdateProject(ctx context.Context, id string, fn func(*project.Project) error) (project.Project, error)
	ListPayouts(ctx context.Context, projectID string) ([]project.Payout, error)
	// CompleteProject releases the escrow and pays every share.
	CompleteProject(ctx context.Context, projectID, ownerID string) (CompleteProjectResult, error)
	// CancelProject refunds the escrow to the owner.
	CancelProject(ctx context.Context, projectID, ownerID string) (CancelProjectResult, error)
}

type CompleteProjectResult struct {
	Project     project.Project
	Payouts     []project.Payout
	OwnerWallet wallet.Wallet
}

type CancelProjectResult struct {
	Project       project.Project
	OwnerWallet   wallet.Wallet
	RejectedTasks []task.Task
}

// TaskStore persists project tasks.
type TaskStore interface {
	// CreateTask enforces that the project is open and that task rewards stay
	// within the member share.
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]task.Task, error)
	ListTasksForAssignee(ctx context.Context, userID string) ([]task.Task, error)
	// UpdateTask applies fn to the locked task and fails with a conflict when
	// the task's project no longer holds escrow, checked under the same lock.
	UpdateTask(ctx context.Context, id string, fn func(*task.Task) error) (task.Task, error)
	ReleaseStaleAssignments(ctx context.Context, assignedBefore time.Time) ([]task.Task, error)
}

// Store is implemented by every complete backend.
type Store interface {
	UserStore
	WalletStore
	GroupStore
	CampaignStore
	ChatStore
	ProposalStore
	ProjectStore
	TaskStore
}
