package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	"github.com/tgmstudios/mrm360-sub002/internal/integrations"
	eventmodels "github.com/tgmstudios/mrm360-sub002/internal/models/events"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
)

type fakeEventStore struct {
	events    map[int64]*eventmodels.Event
	teams     map[int64][]eventmodels.EventTeam
	rosters   map[int64][]eventmodels.EventTeamMember
	attendees map[int64][]eventmodels.Attendee

	nextTeamID int64
	created    []eventmodels.EventTeam
	removed    [][2]int64

	errOnAdd error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:     map[int64]*eventmodels.Event{},
		teams:      map[int64][]eventmodels.EventTeam{},
		rosters:    map[int64][]eventmodels.EventTeamMember{},
		attendees:  map[int64][]eventmodels.Attendee{},
		nextTeamID: 100,
	}
}

func (f *fakeEventStore) GetEvent(ctx context.Context, eventID int64) (*eventmodels.Event, error) {
	return f.events[eventID], nil
}

func (f *fakeEventStore) ListAttendance(ctx context.Context, eventID int64) ([]eventmodels.Attendee, error) {
	return f.attendees[eventID], nil
}

func (f *fakeEventStore) ListEventTeams(ctx context.Context, eventID int64) ([]eventmodels.EventTeam, error) {
	return f.teams[eventID], nil
}

func (f *fakeEventStore) CreateEventTeam(ctx context.Context, team *eventmodels.EventTeam) (int64, error) {
	id := f.nextTeamID
	f.nextTeamID++
	stored := *team
	stored.ID = id
	f.teams[team.EventID] = append(f.teams[team.EventID], stored)
	f.created = append(f.created, stored)
	return id, nil
}

func (f *fakeEventStore) ListTeamMembers(ctx context.Context, eventTeamID int64) ([]eventmodels.EventTeamMember, error) {
	return f.rosters[eventTeamID], nil
}

func (f *fakeEventStore) AddTeamMember(ctx context.Context, eventTeamID, userID int64) error {
	if f.errOnAdd != nil {
		return f.errOnAdd
	}
	f.rosters[eventTeamID] = append(f.rosters[eventTeamID], eventmodels.EventTeamMember{
		EventTeamID: eventTeamID, UserID: userID,
	})
	return nil
}

func (f *fakeEventStore) RemoveTeamMember(ctx context.Context, eventTeamID, userID int64) error {
	f.removed = append(f.removed, [2]int64{eventTeamID, userID})
	members := f.rosters[eventTeamID]
	for i, m := range members {
		if m.UserID == userID {
			f.rosters[eventTeamID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	return nil
}

type fakeWorkshop struct {
	teams   []integrations.WorkshopTeam
	users   map[string][]integrations.WorkshopUser
	pending map[string][]integrations.PendingAssignment

	addedByEmail   []string
	removedUsers   []string
	removedPending []string

	errOnList error
}

func newFakeWorkshop() *fakeWorkshop {
	return &fakeWorkshop{
		users:   map[string][]integrations.WorkshopUser{},
		pending: map[string][]integrations.PendingAssignment{},
	}
}

func (f *fakeWorkshop) ListWorkshopTeams(ctx context.Context, workshopID string) ([]integrations.WorkshopTeam, error) {
	if f.errOnList != nil {
		return nil, f.errOnList
	}
	return f.teams, nil
}

func (f *fakeWorkshop) AddTeamMemberByEmail(ctx context.Context, teamID, email string) error {
	f.addedByEmail = append(f.addedByEmail, teamID+":"+email)
	return nil
}

func (f *fakeWorkshop) ListTeamUsers(ctx context.Context, teamID string) ([]integrations.WorkshopUser, error) {
	return f.users[teamID], nil
}

func (f *fakeWorkshop) RemoveTeamUser(ctx context.Context, teamID, userID string) error {
	f.removedUsers = append(f.removedUsers, teamID+":"+userID)
	return nil
}

func (f *fakeWorkshop) ListPendingAssignments(ctx context.Context, teamID string) ([]integrations.PendingAssignment, error) {
	return f.pending[teamID], nil
}

func (f *fakeWorkshop) RemovePendingAssignment(ctx context.Context, email, teamID string) error {
	f.removedPending = append(f.removedPending, teamID+":"+email)
	return nil
}

func newTestReconciler(store *fakeEventStore, workshop *fakeWorkshop) *Reconciler {
	return NewReconciler(workshop, store, 4, time.Second)
}

func TestSyncUnknownModeIsValidationError(t *testing.T) {
	r := newTestReconciler(newFakeEventStore(), newFakeWorkshop())

	_, err := r.Sync(context.Background(), 1, "turbo")

	var validationErr *apperrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSyncUnknownEventIsNotFound(t *testing.T) {
	r := newTestReconciler(newFakeEventStore(), newFakeWorkshop())

	_, err := r.Sync(context.Background(), 42, intents.ModeBoth)

	var notFound *apperrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAutoAssignFirstFit(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, MembersPerTeam: 2}
	store.teams[1] = []eventmodels.EventTeam{
		{ID: 100, EventID: 1, TeamNumber: 1},
		{ID: 101, EventID: 1, TeamNumber: 2},
	}
	store.nextTeamID = 102
	store.rosters[100] = []eventmodels.EventTeamMember{{EventTeamID: 100, UserID: 1, Email: "a@x"}}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 1, Email: "a@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 2, Email: "b@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 3, Email: "c@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 4, Email: "d@x", Status: eventmodels.AttendanceInvited},
	}

	r := newTestReconciler(store, newFakeWorkshop())
	res, err := r.Sync(context.Background(), 1, intents.ModeAutoAssign)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if res.UsersAssigned != 2 {
		t.Errorf("UsersAssigned = %d, want 2", res.UsersAssigned)
	}
	// User 2 takes the last seat in team 1, user 3 opens team 2. User 4
	// only RSVP'd invited and stays out.
	if len(store.rosters[100]) != 2 {
		t.Errorf("team 1 roster = %v", store.rosters[100])
	}
	if len(store.rosters[101]) != 1 || store.rosters[101][0].UserID != 3 {
		t.Errorf("team 2 roster = %v", store.rosters[101])
	}
	if len(res.Unassigned) != 0 {
		t.Errorf("Unassigned = %v", res.Unassigned)
	}
}

func TestAutoAssignNeverCreatesTeamsForLinkedEvents(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, WorkshopID: "ws-1", MembersPerTeam: 1}
	store.teams[1] = []eventmodels.EventTeam{{ID: 100, EventID: 1, TeamNumber: 1, ExternalTeamID: "ext-1"}}
	store.nextTeamID = 101
	store.rosters[100] = []eventmodels.EventTeamMember{{EventTeamID: 100, UserID: 1, Email: "a@x"}}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 2, Email: "b@x", Status: eventmodels.AttendanceConfirmed},
	}

	workshop := newFakeWorkshop()
	workshop.teams = []integrations.WorkshopTeam{{ID: "ext-1", TeamNumber: 1}}

	r := newTestReconciler(store, workshop)
	res, err := r.Sync(context.Background(), 1, intents.ModeAutoAssign)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(store.created) != 0 {
		t.Errorf("teams created for a linked event: %v", store.created)
	}
	if res.UsersAssigned != 0 {
		t.Errorf("UsersAssigned = %d, want 0", res.UsersAssigned)
	}
	if len(res.Unassigned) != 1 || res.Unassigned[0] != "b@x" {
		t.Errorf("Unassigned = %v, want [b@x]", res.Unassigned)
	}
}

func TestAssignmentStoreFailureIsNotCapacityMiss(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, MembersPerTeam: 2}
	store.teams[1] = []eventmodels.EventTeam{{ID: 100, EventID: 1, TeamNumber: 1}}
	store.nextTeamID = 101
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 1, Email: "a@x", Status: eventmodels.AttendanceConfirmed},
	}
	store.errOnAdd = errors.New("deadlock")

	r := newTestReconciler(store, newFakeWorkshop())
	res, err := r.Sync(context.Background(), 1, intents.ModeAutoAssign)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// The team had room; the write failed. That must surface as a
	// failure count, not as "no capacity".
	if len(res.Unassigned) != 0 {
		t.Errorf("Unassigned = %v, want none", res.Unassigned)
	}
	if res.AssignFailures != 1 {
		t.Errorf("AssignFailures = %d, want 1", res.AssignFailures)
	}
	if res.UsersAssigned != 0 {
		t.Errorf("UsersAssigned = %d, want 0", res.UsersAssigned)
	}
}

func TestEnsureCapacityCreatesNumberedTeams(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, MembersPerTeam: 2}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 1, Email: "a@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 2, Email: "b@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 3, Email: "c@x", Status: eventmodels.AttendanceConfirmed},
	}

	r := newTestReconciler(store, newFakeWorkshop())
	res, err := r.Sync(context.Background(), 1, intents.ModeBoth)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(store.created) != 2 {
		t.Fatalf("created %d teams, want 2", len(store.created))
	}
	if store.created[0].TeamNumber != 1 || store.created[1].TeamNumber != 2 {
		t.Errorf("team numbers = %d, %d", store.created[0].TeamNumber, store.created[1].TeamNumber)
	}
	if res.UsersAssigned != 3 {
		t.Errorf("UsersAssigned = %d, want 3", res.UsersAssigned)
	}
	if len(res.Unassigned) != 0 {
		t.Errorf("Unassigned = %v", res.Unassigned)
	}
}

func TestMirrorExternalTeamsMatchesByNumber(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, WorkshopID: "ws-1"}
	// Team 1 exists locally under a stale external id; matching by number
	// must not duplicate it.
	store.teams[1] = []eventmodels.EventTeam{{ID: 100, EventID: 1, TeamNumber: 1, ExternalTeamID: "old-ext"}}
	store.nextTeamID = 101

	workshop := newFakeWorkshop()
	workshop.teams = []integrations.WorkshopTeam{
		{ID: "ext-1", Name: "Team 1", TeamNumber: 1},
		{ID: "ext-2", Name: "Team 2", TeamNumber: 2},
	}

	r := newTestReconciler(store, workshop)
	res, err := r.Sync(context.Background(), 1, intents.ModeRemoveDeclined)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d teams, want 1", len(store.created))
	}
	if store.created[0].TeamNumber != 2 || store.created[0].ExternalTeamID != "ext-2" {
		t.Errorf("mirrored team = %+v", store.created[0])
	}
	if res.TeamsUpdated != 1 {
		t.Errorf("TeamsUpdated = %d, want 1", res.TeamsUpdated)
	}
}

func TestMirrorFailureAbortsSync(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, WorkshopID: "ws-1"}

	workshop := newFakeWorkshop()
	workshop.errOnList = errors.New("workshop api down")

	r := newTestReconciler(store, workshop)
	_, err := r.Sync(context.Background(), 1, intents.ModeBoth)

	var adapterErr *apperrors.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
}

func TestRemoveDeclinedCleansExternalBothWays(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, WorkshopID: "ws-1"}
	store.teams[1] = []eventmodels.EventTeam{{ID: 100, EventID: 1, TeamNumber: 1, ExternalTeamID: "ext-1"}}
	store.nextTeamID = 101
	store.rosters[100] = []eventmodels.EventTeamMember{{EventTeamID: 100, UserID: 7, Email: "gone@x"}}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 7, Email: "gone@x", Status: eventmodels.AttendanceDeclined},
	}

	workshop := newFakeWorkshop()
	workshop.teams = []integrations.WorkshopTeam{{ID: "ext-1", TeamNumber: 1}}
	workshop.users["ext-1"] = []integrations.WorkshopUser{{ID: "wu-7", Email: "gone@x"}}
	workshop.pending["ext-1"] = []integrations.PendingAssignment{{ID: "pa-7", Email: "gone@x"}}

	r := newTestReconciler(store, workshop)
	res, err := r.Sync(context.Background(), 1, intents.ModeRemoveDeclined)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if res.UsersRemoved != 1 {
		t.Errorf("UsersRemoved = %d, want 1", res.UsersRemoved)
	}
	if len(store.removed) != 1 || store.removed[0] != [2]int64{100, 7} {
		t.Errorf("local removals = %v", store.removed)
	}
	if len(workshop.removedUsers) != 1 || workshop.removedUsers[0] != "ext-1:wu-7" {
		t.Errorf("external removals = %v", workshop.removedUsers)
	}
	if len(workshop.removedPending) != 1 || workshop.removedPending[0] != "ext-1:gone@x" {
		t.Errorf("pending removals = %v", workshop.removedPending)
	}
}

func TestRemoveDeclinedPendingOnly(t *testing.T) {
	store := newFakeEventStore()
	store.events[1] = &eventmodels.Event{ID: 1, WorkshopID: "ws-1"}
	store.teams[1] = []eventmodels.EventTeam{{ID: 100, EventID: 1, TeamNumber: 1, ExternalTeamID: "ext-1"}}
	store.nextTeamID = 101
	store.rosters[100] = []eventmodels.EventTeamMember{{EventTeamID: 100, UserID: 8, Email: "late@x"}}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 8, Email: "late@x", Status: eventmodels.AttendanceDeclined},
	}

	workshop := newFakeWorkshop()
	workshop.teams = []integrations.WorkshopTeam{{ID: "ext-1", TeamNumber: 1}}
	workshop.pending["ext-1"] = []integrations.PendingAssignment{{ID: "pa-8", Email: "late@x"}}

	r := newTestReconciler(store, workshop)
	_, err := r.Sync(context.Background(), 1, intents.ModeRemoveDeclined)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(workshop.removedUsers) != 0 {
		t.Errorf("external removals = %v, want none", workshop.removedUsers)
	}
	if len(workshop.removedPending) != 1 {
		t.Errorf("pending removals = %v, want one", workshop.removedPending)
	}
}

func TestDefaultCapacityApplies(t *testing.T) {
	store := newFakeEventStore()
	// No per-event limit; the reconciler default of 4 applies.
	store.events[1] = &eventmodels.Event{ID: 1}
	store.attendees[1] = []eventmodels.Attendee{
		{UserID: 1, Email: "a@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 2, Email: "b@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 3, Email: "c@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 4, Email: "d@x", Status: eventmodels.AttendanceConfirmed},
		{UserID: 5, Email: "e@x", Status: eventmodels.AttendanceConfirmed},
	}

	r := newTestReconciler(store, newFakeWorkshop())
	res, err := r.Sync(context.Background(), 1, intents.ModeAutoAssign)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(store.created) != 2 {
		t.Errorf("created %d teams, want 2", len(store.created))
	}
	if res.UsersAssigned != 5 {
		t.Errorf("UsersAssigned = %d, want 5", res.UsersAssigned)
	}
}
