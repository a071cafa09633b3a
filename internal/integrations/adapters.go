package integrations

import "context"

// Integration names, also used as subtask names and ref system names.
const (
	Directory = "directory"
	Wiki      = "wiki"
	Groupware = "groupware"
	VCS       = "vcs"
	Chat      = "chat"
	Workshop  = "workshop"
)

// Group is an external group/team resource reference.
type Group struct {
	ID string
}

// Page is a created wiki page reference.
type Page struct {
	Path string
}

// WorkshopTeam is one team as the external workshop system reports it.
// TeamNumber may be 0 when the system does not number its teams.
type WorkshopTeam struct {
	ID         string
	Name       string
	TeamNumber int
}

// WorkshopUser is a materialized member of an external workshop team.
type WorkshopUser struct {
	ID    string
	Email string
}

// PendingAssignment is an email-keyed join intent on the workshop system
// that has not yet become a real membership.
type PendingAssignment struct {
	ID    string
	Email string
}

// DirectoryAdapter mirrors groups into the identity directory. CreateGroup
// must be idempotent: creating an existing group by name returns the
// existing id.
type DirectoryAdapter interface {
	CreateGroup(ctx context.Context, name, description, parentID string) (Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	AddUsers(ctx context.Context, groupID string, userIDs []string) error
	RemoveUsers(ctx context.Context, groupID string, userIDs []string) error
	GetParentGroup(ctx context.Context, name string) (Group, error)
}

// WikiAdapter creates the team's index page.
type WikiAdapter interface {
	CreateTeamIndexPage(ctx context.Context, kind, name string) (Page, error)
}

// GroupwareAdapter manages the groupware group and its optional
// sub-resources. Each sub-resource creation is independently optional.
type GroupwareAdapter interface {
	CreateGroup(ctx context.Context, name string) (Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	AddUsersToGroup(ctx context.Context, groupID string, userIDs []string) error
	CreateFolder(ctx context.Context, name, groupID string) error
	CreateCalendar(ctx context.Context, name, groupID string) error
	GrantGroupCalendarAccess(ctx context.Context, name, groupID, level string) error
	CreateBoard(ctx context.Context, name, groupID string) error
}

// VCSAdapter manages the source-control team and repository.
type VCSAdapter interface {
	CreateTeam(ctx context.Context, name string) (Group, error)
	DeleteTeam(ctx context.Context, teamID string) error
	CreateRepository(ctx context.Context, name string) (Group, error)
	DeleteRepository(ctx context.Context, repoID string) error
	AddTeamToRepository(ctx context.Context, teamID, repoID string) error
	AddUsersToTeam(ctx context.Context, teamID string, userIDs []string) error
}

// ChatAdapter operations are queued on the chat system's side to respect
// its rate limits; every call returns an accepted-job id, never the final
// external state.
type ChatAdapter interface {
	CreateRole(ctx context.Context, name string) (string, error)
	DeleteRole(ctx context.Context, name string) (string, error)
	CreateChannel(ctx context.Context, name string) (string, error)
	DeleteChannel(ctx context.Context, name string) (string, error)
	SetChannelPermissions(ctx context.Context, channel, role string) (string, error)
	AssignRoleToUsers(ctx context.Context, role string, userIDs []string) (string, error)
}

// WorkshopAdapter reads and mutates the external workshop system, which
// can originate teams and memberships out-of-band.
type WorkshopAdapter interface {
	ListWorkshopTeams(ctx context.Context, workshopID string) ([]WorkshopTeam, error)
	AddTeamMemberByEmail(ctx context.Context, teamID, email string) error
	ListTeamUsers(ctx context.Context, teamID string) ([]WorkshopUser, error)
	RemoveTeamUser(ctx context.Context, teamID, userID string) error
	ListPendingAssignments(ctx context.Context, teamID string) ([]PendingAssignment, error)
	RemovePendingAssignment(ctx context.Context, email, teamID string) error
}

// Adapters bundles every adapter the orchestrator can reach. Fields are
// interface values so tests can substitute fakes.
type Adapters struct {
	Directory DirectoryAdapter
	Wiki      WikiAdapter
	Groupware GroupwareAdapter
	VCS       VCSAdapter
	Chat      ChatAdapter
	Workshop  WorkshopAdapter
}
