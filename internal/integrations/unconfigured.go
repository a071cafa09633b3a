package integrations

import (
	"context"
	"fmt"
)

// Unconfigured returns an adapter set whose every operation fails with a
// not-configured error. Deployments plug real clients in per system;
// anything left unconfigured should also be absent from the enabled
// integrations list, so these stubs only fire on misconfiguration.
func Unconfigured() Adapters {
	return Adapters{
		Directory: unconfiguredDirectory{},
		Wiki:      unconfiguredWiki{},
		Groupware: unconfiguredGroupware{},
		VCS:       unconfiguredVCS{},
		Chat:      unconfiguredChat{},
		Workshop:  unconfiguredWorkshop{},
	}
}

func notConfigured(name string) error {
	return fmt.Errorf("%s adapter is not configured", name)
}

type unconfiguredDirectory struct{}

func (unconfiguredDirectory) CreateGroup(ctx context.Context, name, description, parentID string) (Group, error) {
	return Group{}, notConfigured(Directory)
}
func (unconfiguredDirectory) DeleteGroup(ctx context.Context, groupID string) error {
	return notConfigured(Directory)
}
func (unconfiguredDirectory) AddUsers(ctx context.Context, groupID string, userIDs []string) error {
	return notConfigured(Directory)
}
func (unconfiguredDirectory) RemoveUsers(ctx context.Context, groupID string, userIDs []string) error {
	return notConfigured(Directory)
}
func (unconfiguredDirectory) GetParentGroup(ctx context.Context, name string) (Group, error) {
	return Group{}, notConfigured(Directory)
}

type unconfiguredWiki struct{}

func (unconfiguredWiki) CreateTeamIndexPage(ctx context.Context, kind, name string) (Page, error) {
	return Page{}, notConfigured(Wiki)
}

type unconfiguredGroupware struct{}

func (unconfiguredGroupware) CreateGroup(ctx context.Context, name string) (Group, error) {
	return Group{}, notConfigured(Groupware)
}
func (unconfiguredGroupware) DeleteGroup(ctx context.Context, groupID string) error {
	return notConfigured(Groupware)
}
func (unconfiguredGroupware) AddUsersToGroup(ctx context.Context, groupID string, userIDs []string) error {
	return notConfigured(Groupware)
}
func (unconfiguredGroupware) CreateFolder(ctx context.Context, name, groupID string) error {
	return notConfigured(Groupware)
}
func (unconfiguredGroupware) CreateCalendar(ctx context.Context, name, groupID string) error {
	return notConfigured(Groupware)
}
func (unconfiguredGroupware) GrantGroupCalendarAccess(ctx context.Context, name, groupID, level string) error {
	return notConfigured(Groupware)
}
func (unconfiguredGroupware) CreateBoard(ctx context.Context, name, groupID string) error {
	return notConfigured(Groupware)
}

type unconfiguredVCS struct{}

func (unconfiguredVCS) CreateTeam(ctx context.Context, name string) (Group, error) {
	return Group{}, notConfigured(VCS)
}
func (unconfiguredVCS) DeleteTeam(ctx context.Context, teamID string) error {
	return notConfigured(VCS)
}
func (unconfiguredVCS) CreateRepository(ctx context.Context, name string) (Group, error) {
	return Group{}, notConfigured(VCS)
}
func (unconfiguredVCS) DeleteRepository(ctx context.Context, repoID string) error {
	return notConfigured(VCS)
}
func (unconfiguredVCS) AddTeamToRepository(ctx context.Context, teamID, repoID string) error {
	return notConfigured(VCS)
}
func (unconfiguredVCS) AddUsersToTeam(ctx context.Context, teamID string, userIDs []string) error {
	return notConfigured(VCS)
}

type unconfiguredChat struct{}

func (unconfiguredChat) CreateRole(ctx context.Context, name string) (string, error) {
	return "", notConfigured(Chat)
}
func (unconfiguredChat) DeleteRole(ctx context.Context, name string) (string, error) {
	return "", notConfigured(Chat)
}
func (unconfiguredChat) CreateChannel(ctx context.Context, name string) (string, error) {
	return "", notConfigured(Chat)
}
func (unconfiguredChat) DeleteChannel(ctx context.Context, name string) (string, error) {
	return "", notConfigured(Chat)
}
func (unconfiguredChat) SetChannelPermissions(ctx context.Context, channel, role string) (string, error) {
	return "", notConfigured(Chat)
}
func (unconfiguredChat) AssignRoleToUsers(ctx context.Context, role string, userIDs []string) (string, error) {
	return "", notConfigured(Chat)
}

type unconfiguredWorkshop struct{}

func (unconfiguredWorkshop) ListWorkshopTeams(ctx context.Context, workshopID string) ([]WorkshopTeam, error) {
	return nil, notConfigured(Workshop)
}
func (unconfiguredWorkshop) AddTeamMemberByEmail(ctx context.Context, teamID, email string) error {
	return notConfigured(Workshop)
}
func (unconfiguredWorkshop) ListTeamUsers(ctx context.Context, teamID string) ([]WorkshopUser, error) {
	return nil, notConfigured(Workshop)
}
func (unconfiguredWorkshop) RemoveTeamUser(ctx context.Context, teamID, userID string) error {
	return notConfigured(Workshop)
}
func (unconfiguredWorkshop) ListPendingAssignments(ctx context.Context, teamID string) ([]PendingAssignment, error) {
	return nil, notConfigured(Workshop)
}
func (unconfiguredWorkshop) RemovePendingAssignment(ctx context.Context, email, teamID string) error {
	return notConfigured(Workshop)
}
