package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/integrations"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	teammodels "github.com/tgmstudios/mrm360-sub002/internal/models/teams"
)

const allEnabled = "directory,wiki,groupware,vcs,chat"

func enabledList(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// --- fake store ---

type fakeTeamStore struct {
	teams   map[int64]*teammodels.Team
	members map[int64][]teammodels.TeamMember
	refs    map[string]string // "teamID/system" -> external id

	renamed    bool
	deleted    []int64
	replaced   [][]intents.Member
	errOnRef   error
	upsertRefs []teammodels.ExternalGroupRef
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{
		teams:   map[int64]*teammodels.Team{},
		members: map[int64][]teammodels.TeamMember{},
		refs:    map[string]string{},
	}
}

func refKey(teamID int64, system string) string {
	return fmt.Sprintf("%d/%s", teamID, system)
}

func (f *fakeTeamStore) GetTeam(ctx context.Context, teamID int64) (*teammodels.Team, error) {
	return f.teams[teamID], nil
}

func (f *fakeTeamStore) SetParentKey(ctx context.Context, teamID int64, parentKey string) error {
	if team := f.teams[teamID]; team != nil {
		team.ParentKey = parentKey
	}
	return nil
}

func (f *fakeTeamStore) RenameTeam(ctx context.Context, teamID int64, name, kind string) error {
	f.renamed = true
	team := f.teams[teamID]
	if team == nil {
		return nil
	}
	if name != "" {
		team.Name = name
	}
	if kind != "" {
		team.Kind = kind
	}
	return nil
}

func (f *fakeTeamStore) DeleteTeam(ctx context.Context, teamID int64) error {
	f.deleted = append(f.deleted, teamID)
	delete(f.teams, teamID)
	return nil
}

func (f *fakeTeamStore) ListMembers(ctx context.Context, teamID int64) ([]teammodels.TeamMember, error) {
	return f.members[teamID], nil
}

func (f *fakeTeamStore) ReplaceMembers(ctx context.Context, teamID int64, members []intents.Member) error {
	f.replaced = append(f.replaced, members)
	return nil
}

func (f *fakeTeamStore) GetRef(ctx context.Context, teamID int64, systemName string) (*teammodels.ExternalGroupRef, error) {
	if f.errOnRef != nil {
		return nil, f.errOnRef
	}
	id, ok := f.refs[refKey(teamID, systemName)]
	if !ok {
		return nil, nil
	}
	return &teammodels.ExternalGroupRef{TeamID: teamID, SystemName: systemName, ExternalID: id}, nil
}

func (f *fakeTeamStore) UpsertRef(ctx context.Context, ref *teammodels.ExternalGroupRef) error {
	f.refs[refKey(ref.TeamID, ref.SystemName)] = ref.ExternalID
	f.upsertRefs = append(f.upsertRefs, *ref)
	return nil
}

func (f *fakeTeamStore) DeleteRef(ctx context.Context, teamID int64, systemName string) error {
	delete(f.refs, refKey(teamID, systemName))
	return nil
}

// --- fake adapters ---

type fakeDirectory struct {
	calls        []string
	errOnCreate  error
	createdCount int
}

func (f *fakeDirectory) CreateGroup(ctx context.Context, name, description, parentID string) (integrations.Group, error) {
	f.calls = append(f.calls, "CreateGroup")
	if f.errOnCreate != nil {
		return integrations.Group{}, f.errOnCreate
	}
	f.createdCount++
	return integrations.Group{ID: "dir-grp-1"}, nil
}

func (f *fakeDirectory) DeleteGroup(ctx context.Context, groupID string) error {
	f.calls = append(f.calls, "DeleteGroup")
	return nil
}

func (f *fakeDirectory) AddUsers(ctx context.Context, groupID string, userIDs []string) error {
	f.calls = append(f.calls, "AddUsers")
	return nil
}

func (f *fakeDirectory) RemoveUsers(ctx context.Context, groupID string, userIDs []string) error {
	f.calls = append(f.calls, "RemoveUsers")
	return nil
}

func (f *fakeDirectory) GetParentGroup(ctx context.Context, name string) (integrations.Group, error) {
	f.calls = append(f.calls, "GetParentGroup")
	return integrations.Group{ID: "parent-" + name}, nil
}

type fakeWiki struct {
	err   error
	calls int
}

func (f *fakeWiki) CreateTeamIndexPage(ctx context.Context, kind, name string) (integrations.Page, error) {
	f.calls++
	if f.err != nil {
		return integrations.Page{}, f.err
	}
	return integrations.Page{Path: "/" + kind + "/" + name}, nil
}

type fakeGroupware struct {
	errOnCreate   error
	errOnCalendar error
	deleted       []string
}

func (f *fakeGroupware) CreateGroup(ctx context.Context, name string) (integrations.Group, error) {
	if f.errOnCreate != nil {
		return integrations.Group{}, f.errOnCreate
	}
	return integrations.Group{ID: "gw-grp-1"}, nil
}

func (f *fakeGroupware) DeleteGroup(ctx context.Context, groupID string) error {
	f.deleted = append(f.deleted, groupID)
	return nil
}

func (f *fakeGroupware) AddUsersToGroup(ctx context.Context, groupID string, userIDs []string) error {
	return nil
}

func (f *fakeGroupware) CreateFolder(ctx context.Context, name, groupID string) error { return nil }

func (f *fakeGroupware) CreateCalendar(ctx context.Context, name, groupID string) error {
	return f.errOnCalendar
}

func (f *fakeGroupware) GrantGroupCalendarAccess(ctx context.Context, name, groupID, level string) error {
	return nil
}

func (f *fakeGroupware) CreateBoard(ctx context.Context, name, groupID string) error { return nil }

type fakeVCS struct {
	deletedRepos []string
	deletedTeams []string
}

func (f *fakeVCS) CreateTeam(ctx context.Context, name string) (integrations.Group, error) {
	return integrations.Group{ID: "vcs-team-1"}, nil
}

func (f *fakeVCS) DeleteTeam(ctx context.Context, teamID string) error {
	f.deletedTeams = append(f.deletedTeams, teamID)
	return nil
}

func (f *fakeVCS) CreateRepository(ctx context.Context, name string) (integrations.Group, error) {
	return integrations.Group{ID: "vcs-repo-1"}, nil
}

func (f *fakeVCS) DeleteRepository(ctx context.Context, repoID string) error {
	f.deletedRepos = append(f.deletedRepos, repoID)
	return nil
}

func (f *fakeVCS) AddTeamToRepository(ctx context.Context, teamID, repoID string) error { return nil }

func (f *fakeVCS) AddUsersToTeam(ctx context.Context, teamID string, userIDs []string) error {
	return nil
}

type fakeChat struct {
	jobs int
}

func (f *fakeChat) next() string {
	f.jobs++
	return fmt.Sprintf("chat-job-%d", f.jobs)
}

func (f *fakeChat) CreateRole(ctx context.Context, name string) (string, error)    { return f.next(), nil }
func (f *fakeChat) DeleteRole(ctx context.Context, name string) (string, error)    { return f.next(), nil }
func (f *fakeChat) CreateChannel(ctx context.Context, name string) (string, error) { return f.next(), nil }
func (f *fakeChat) DeleteChannel(ctx context.Context, name string) (string, error) { return f.next(), nil }
func (f *fakeChat) SetChannelPermissions(ctx context.Context, channel, role string) (string, error) {
	return f.next(), nil
}
func (f *fakeChat) AssignRoleToUsers(ctx context.Context, role string, userIDs []string) (string, error) {
	return f.next(), nil
}

type testEnv struct {
	store     *fakeTeamStore
	directory *fakeDirectory
	wiki      *fakeWiki
	groupware *fakeGroupware
	vcs       *fakeVCS
	chat      *fakeChat
	orch      *Orchestrator
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newFakeTeamStore(),
		directory: &fakeDirectory{},
		wiki:      &fakeWiki{},
		groupware: &fakeGroupware{},
		vcs:       &fakeVCS{},
		chat:      &fakeChat{},
	}
	adapters := integrations.Adapters{
		Directory: env.directory,
		Wiki:      env.wiki,
		Groupware: env.groupware,
		VCS:       env.vcs,
		Chat:      env.chat,
	}
	env.orch = NewOrchestrator(adapters, env.store, time.Second)
	return env
}

func createIntent(teamID int64) *intents.CreateTeam {
	return &intents.CreateTeam{
		TeamID:              teamID,
		Name:                "robotics",
		TeamKind:            "competition",
		Members:             []intents.Member{{UserID: 1, Email: "a@example.com"}},
		EnabledIntegrations: enabledList(allEnabled),
	}
}

func TestCreateProvisionsEveryIntegrationInOrder(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics", Kind: "competition"}

	var observed []string
	res, err := env.orch.Provision(context.Background(), createIntent(1), func(i int, r IntegrationResult) {
		observed = append(observed, r.Integration)
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, errors: %v", res.Errors)
	}

	want := []string{"directory", "wiki", "groupware", "vcs", "chat"}
	if len(observed) != len(want) {
		t.Fatalf("observed %v, want %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, observed[i], want[i])
		}
	}

	if env.store.refs[refKey(1, "directory")] != "dir-grp-1" {
		t.Errorf("directory ref = %q", env.store.refs[refKey(1, "directory")])
	}
	if env.store.refs[refKey(1, "vcs")] != "vcs-team-1/vcs-repo-1" {
		t.Errorf("vcs ref = %q", env.store.refs[refKey(1, "vcs")])
	}
	if env.store.teams[1].ParentKey != "Competition Teams" {
		t.Errorf("parent key = %q", env.store.teams[1].ParentKey)
	}
}

func TestCreateChatResultIsAccepted(t *testing.T) {
	env := newTestEnv()
	env.store.teams[2] = &teammodels.Team{ID: 2, Name: "robotics"}

	var chatResult IntegrationResult
	_, err := env.orch.Provision(context.Background(), createIntent(2), func(i int, r IntegrationResult) {
		if r.Integration == "chat" {
			chatResult = r
		}
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !strings.HasPrefix(chatResult.Detail, "accepted:") {
		t.Errorf("chat detail = %q, want accepted:<ids>", chatResult.Detail)
	}
}

func TestCreateIsIdempotentViaRefs(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics", Kind: "competition"}

	if _, err := env.orch.Provision(context.Background(), createIntent(1), nil); err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	firstCreates := env.directory.createdCount

	res, err := env.orch.Provision(context.Background(), createIntent(1), nil)
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("second run failed: %v", res.Errors)
	}
	if env.directory.createdCount != firstCreates {
		t.Errorf("directory group created again on replay")
	}
	for _, r := range res.Results {
		if r.Integration == "directory" && r.Detail != "already provisioned" {
			t.Errorf("directory detail = %q", r.Detail)
		}
	}
}

func TestMandatoryFailureFlipsResultButKeepsPartials(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics", Kind: "competition"}
	env.groupware.errOnCreate = errors.New("groupware down")

	res, err := env.orch.Provision(context.Background(), createIntent(1), nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	// Earlier refs survive so a retry can short-circuit them.
	if env.store.refs[refKey(1, "directory")] == "" {
		t.Error("directory ref lost on partial failure")
	}
	// Later steps still ran.
	if env.store.refs[refKey(1, "vcs")] == "" {
		t.Error("vcs step not attempted after groupware failure")
	}
}

func TestOptionalFailureIsWarningOnly(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics", Kind: "competition"}
	env.wiki.err = errors.New("wiki down")

	res, err := env.orch.Provision(context.Background(), createIntent(1), nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("optional failure flipped the run: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the wiki failure")
	}
}

func TestUnknownKindFallsBackToDefaultParent(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics"}

	in := createIntent(1)
	in.TeamKind = "mystery"
	res, err := env.orch.Provision(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}
	if env.store.teams[1].ParentKey != DefaultParentGroup {
		t.Errorf("parent key = %q, want %q", env.store.teams[1].ParentKey, DefaultParentGroup)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the unknown kind")
	}
}

func TestDisabledIntegrationIsSkipped(t *testing.T) {
	env := newTestEnv()
	env.store.teams[1] = &teammodels.Team{ID: 1, Name: "robotics", Kind: "competition"}

	in := createIntent(1)
	in.EnabledIntegrations = enabledList("directory,groupware")
	res, err := env.orch.Provision(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}
	for _, r := range res.Results {
		switch r.Integration {
		case "wiki", "vcs", "chat":
			if !r.Skipped {
				t.Errorf("%s not skipped", r.Integration)
			}
		default:
			if r.Skipped {
				t.Errorf("%s unexpectedly skipped", r.Integration)
			}
		}
	}
	if env.wiki.calls != 0 {
		t.Error("wiki adapter called while disabled")
	}
}

func TestUpdateRenameWarnsAndAppliesLocally(t *testing.T) {
	env := newTestEnv()
	env.store.teams[3] = &teammodels.Team{ID: 3, Name: "old-name", Kind: "development"}

	in := &intents.UpdateTeam{
		TeamID:              3,
		Name:                "new-name",
		EnabledIntegrations: enabledList(allEnabled),
	}
	res, err := env.orch.Provision(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a rename warning")
	}
	if !env.store.renamed {
		t.Error("local rename not applied")
	}
	if env.store.teams[3].Name != "new-name" {
		t.Errorf("team name = %q", env.store.teams[3].Name)
	}
}

func TestUpdateMembershipDiffAndReplace(t *testing.T) {
	env := newTestEnv()
	env.store.teams[3] = &teammodels.Team{ID: 3, Name: "robotics", Kind: "development"}
	env.store.members[3] = []teammodels.TeamMember{
		{TeamID: 3, UserID: 1, Email: "a@example.com", Role: "member"},
		{TeamID: 3, UserID: 2, Email: "b@example.com", Role: "member"},
	}
	env.store.refs[refKey(3, "directory")] = "dir-grp-3"

	in := &intents.UpdateTeam{
		TeamID: 3,
		Members: []intents.Member{
			{UserID: 2, Email: "b@example.com"},
			{UserID: 4, Email: "d@example.com"},
		},
		EnabledIntegrations: enabledList("directory"),
	}
	res, err := env.orch.Provision(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}

	wantCalls := []string{"AddUsers", "RemoveUsers"}
	if len(env.directory.calls) != len(wantCalls) {
		t.Fatalf("directory calls = %v, want %v", env.directory.calls, wantCalls)
	}
	for i := range wantCalls {
		if env.directory.calls[i] != wantCalls[i] {
			t.Errorf("call %d = %q, want %q", i, env.directory.calls[i], wantCalls[i])
		}
	}
	if len(env.store.replaced) != 1 {
		t.Fatalf("ReplaceMembers called %d times", len(env.store.replaced))
	}
}

func TestUpdateUnknownTeamIsNotFound(t *testing.T) {
	env := newTestEnv()

	in := &intents.UpdateTeam{TeamID: 99, EnabledIntegrations: enabledList(allEnabled)}
	_, err := env.orch.Provision(context.Background(), in, nil)
	if err == nil {
		t.Fatal("expected error for unknown team")
	}
}

func TestDeleteRunsReverseOrderAndRemovesRefs(t *testing.T) {
	env := newTestEnv()
	env.store.teams[5] = &teammodels.Team{ID: 5, Name: "robotics", Kind: "competition"}
	env.store.refs[refKey(5, "directory")] = "dir-grp-5"
	env.store.refs[refKey(5, "groupware")] = "gw-grp-5"
	env.store.refs[refKey(5, "vcs")] = "vcs-team-5/vcs-repo-5"
	env.store.refs[refKey(5, "chat")] = "robotics"

	var observed []string
	in := &intents.DeleteTeam{TeamID: 5, EnabledIntegrations: enabledList(allEnabled)}
	res, err := env.orch.Provision(context.Background(), in, func(i int, r IntegrationResult) {
		observed = append(observed, r.Integration)
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}

	want := []string{"chat", "vcs", "groupware", "wiki", "directory"}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, observed[i], want[i])
		}
	}

	if len(env.store.refs) != 0 {
		t.Errorf("refs remain after delete: %v", env.store.refs)
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != 5 {
		t.Errorf("local delete = %v", env.store.deleted)
	}
	if len(env.vcs.deletedRepos) != 1 || env.vcs.deletedRepos[0] != "vcs-repo-5" {
		t.Errorf("deleted repos = %v", env.vcs.deletedRepos)
	}
	if len(env.vcs.deletedTeams) != 1 || env.vcs.deletedTeams[0] != "vcs-team-5" {
		t.Errorf("deleted vcs teams = %v", env.vcs.deletedTeams)
	}
}

func TestDeleteWithoutRefsIsNoOpSuccess(t *testing.T) {
	env := newTestEnv()
	env.store.teams[6] = &teammodels.Team{ID: 6, Name: "ghost"}

	in := &intents.DeleteTeam{TeamID: 6, EnabledIntegrations: enabledList(allEnabled)}
	res, err := env.orch.Provision(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Errors)
	}
	if len(env.directory.calls) != 0 {
		t.Errorf("directory called with no ref: %v", env.directory.calls)
	}
}

func TestSubtaskNamesFollowIntentKind(t *testing.T) {
	createNames := SubtaskNames(&intents.CreateTeam{})
	if createNames[0] != "directory" || createNames[len(createNames)-1] != "chat" {
		t.Errorf("create order = %v", createNames)
	}
	deleteNames := SubtaskNames(&intents.DeleteTeam{})
	if deleteNames[0] != "chat" || deleteNames[len(deleteNames)-1] != "directory" {
		t.Errorf("delete order = %v", deleteNames)
	}
}
