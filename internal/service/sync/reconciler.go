package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	"github.com/tgmstudios/mrm360-sub002/internal/integrations"
	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	eventmodels "github.com/tgmstudios/mrm360-sub002/internal/models/events"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
)

// Result counts what one sync invocation changed. Unassigned lists the
// confirmed attendees no team had room for; that is a report, not an
// error.
type Result struct {
	UsersAssigned int `json:"users_assigned"`
	UsersRemoved  int `json:"users_removed"`
	TeamsUpdated  int `json:"teams_updated"`
	ExternalSyncs int `json:"external_syncs"`
	// AssignFailures counts attendees whose assignment hit a store
	// error; the next sync retries them.
	AssignFailures int      `json:"assign_failures,omitempty"`
	Unassigned     []string `json:"unassigned,omitempty"`
}

// Reconciler keeps an event's sub-team rosters in line with its RSVP
// state and, when linked, with the external workshop system. Per-member
// failures are logged and counted, never abort the batch.
type Reconciler struct {
	workshop       integrations.WorkshopAdapter
	store          EventStore
	log            *logger.Logger
	defaultPerTeam int
	adapterTimeout time.Duration
}

// NewReconciler builds a reconciler. defaultPerTeam caps sub-team size
// when an event does not specify its own limit.
func NewReconciler(workshop integrations.WorkshopAdapter, store EventStore, defaultPerTeam int, adapterTimeout time.Duration) *Reconciler {
	return &Reconciler{
		workshop:       workshop,
		store:          store,
		log:            logger.NewLogger("sync"),
		defaultPerTeam: defaultPerTeam,
		adapterTimeout: adapterTimeout,
	}
}

// Sync runs the three reconciliation passes for one event: mirror
// external teams inward, push local membership outward, then
// auto-assign and/or remove declined members depending on mode.
func (r *Reconciler) Sync(ctx context.Context, eventID int64, mode string) (*Result, error) {
	switch mode {
	case intents.ModeAutoAssign, intents.ModeRemoveDeclined, intents.ModeBoth:
	default:
		return nil, apperrors.NewValidation("unknown sync mode %q", mode)
	}

	event, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperrors.NewNotFound("event", strconv.FormatInt(eventID, 10))
	}

	capacity := event.MembersPerTeam
	if capacity <= 0 {
		capacity = r.defaultPerTeam
	}

	res := &Result{}

	if event.WorkshopID != "" {
		if err := r.mirrorExternalTeams(ctx, event, res); err != nil {
			return nil, err
		}
	}

	// Rosters are re-read after mirroring so newly discovered teams
	// participate in the remaining passes.
	teams, err := r.store.ListEventTeams(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rosters := make(map[int64][]eventmodels.EventTeamMember, len(teams))
	for _, t := range teams {
		members, err := r.store.ListTeamMembers(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		rosters[t.ID] = members
	}

	r.pushMembership(ctx, teams, rosters, res)

	attendees, err := r.store.ListAttendance(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if mode == intents.ModeAutoAssign || mode == intents.ModeBoth {
		if event.WorkshopID == "" {
			teams, err = r.ensureCapacity(ctx, event, teams, rosters, attendees, capacity)
			if err != nil {
				return nil, err
			}
		}
		r.autoAssign(ctx, teams, rosters, attendees, capacity, res)
	}

	if mode == intents.ModeRemoveDeclined || mode == intents.ModeBoth {
		r.removeDeclined(ctx, teams, rosters, attendees, res)
	}

	r.log.Info("Sync finished", "event_id", eventID, "mode", mode,
		"assigned", res.UsersAssigned, "removed", res.UsersRemoved,
		"teams_updated", res.TeamsUpdated, "external_syncs", res.ExternalSyncs,
		"unassigned", len(res.Unassigned))
	return res, nil
}

// mirrorExternalTeams creates a local sub-team for every external team
// not yet represented. Matching is by team number, not external id:
// external ids can be reassigned across resyncs, team numbers cannot.
func (r *Reconciler) mirrorExternalTeams(ctx context.Context, event *eventmodels.Event, res *Result) error {
	cctx, cancel := r.callCtx(ctx)
	external, err := r.workshop.ListWorkshopTeams(cctx, event.WorkshopID)
	cancel()
	if err != nil {
		return apperrors.NewAdapter(integrations.Workshop, err)
	}

	teams, err := r.store.ListEventTeams(ctx, event.ID)
	if err != nil {
		return err
	}

	known := make(map[int]bool, len(teams))
	next := 1
	for _, t := range teams {
		known[t.TeamNumber] = true
		if t.TeamNumber >= next {
			next = t.TeamNumber + 1
		}
	}

	for _, ext := range external {
		number := ext.TeamNumber
		if number <= 0 {
			// The external system did not number this team; take the
			// next free local number.
			number = next
		}
		if known[number] {
			continue
		}

		_, err := r.store.CreateEventTeam(ctx, &eventmodels.EventTeam{
			EventID:        event.ID,
			TeamNumber:     number,
			ExternalTeamID: ext.ID,
		})
		if err != nil {
			return err
		}
		known[number] = true
		if number >= next {
			next = number + 1
		}
		res.TeamsUpdated++
		r.log.Info("Mirrored external team", "event_id", event.ID, "team_number", number, "external_team_id", ext.ID)
	}

	return nil
}

// pushMembership adds every local member to the linked external team by
// email. Best-effort per member.
func (r *Reconciler) pushMembership(ctx context.Context, teams []eventmodels.EventTeam, rosters map[int64][]eventmodels.EventTeamMember, res *Result) {
	for _, t := range teams {
		if t.ExternalTeamID == "" {
			continue
		}
		for _, m := range rosters[t.ID] {
			cctx, cancel := r.callCtx(ctx)
			err := r.workshop.AddTeamMemberByEmail(cctx, t.ExternalTeamID, m.Email)
			cancel()
			if err != nil {
				r.log.Warn("External membership push failed",
					"event_team_id", t.ID, "email", m.Email, "error", err)
				continue
			}
			res.ExternalSyncs++
		}
	}
}

// ensureCapacity creates numbered local teams so every confirmed but
// unassigned attendee can be seated. Only runs for events whose teams
// the application owns; an external workshop's roster must not grow
// local-only teams.
func (r *Reconciler) ensureCapacity(ctx context.Context, event *eventmodels.Event, teams []eventmodels.EventTeam, rosters map[int64][]eventmodels.EventTeamMember, attendees []eventmodels.Attendee, capacity int) ([]eventmodels.EventTeam, error) {
	assigned := assignedUsers(rosters)
	unassigned := 0
	for _, a := range attendees {
		if a.Status == eventmodels.AttendanceConfirmed && !assigned[a.UserID] {
			unassigned++
		}
	}

	free := 0
	next := 1
	for _, t := range teams {
		if room := capacity - len(rosters[t.ID]); room > 0 {
			free += room
		}
		if t.TeamNumber >= next {
			next = t.TeamNumber + 1
		}
	}

	for free < unassigned {
		team := &eventmodels.EventTeam{EventID: event.ID, TeamNumber: next}
		id, err := r.store.CreateEventTeam(ctx, team)
		if err != nil {
			return nil, err
		}
		team.ID = id
		teams = append(teams, *team)
		rosters[id] = nil
		r.log.Info("Created sub-team", "event_id", event.ID, "team_number", next)
		next++
		free += capacity
	}

	return teams, nil
}

// autoAssign seats each confirmed, unassigned attendee in the first
// sub-team with room, in team creation order. It never creates a team;
// attendees with no room anywhere are reported as unassigned.
func (r *Reconciler) autoAssign(ctx context.Context, teams []eventmodels.EventTeam, rosters map[int64][]eventmodels.EventTeamMember, attendees []eventmodels.Attendee, capacity int, res *Result) {
	assigned := assignedUsers(rosters)

	for _, a := range attendees {
		if a.Status != eventmodels.AttendanceConfirmed || assigned[a.UserID] {
			continue
		}

		placed := false
		failed := false
		for i := range teams {
			t := &teams[i]
			if len(rosters[t.ID]) >= capacity {
				continue
			}

			if err := r.store.AddTeamMember(ctx, t.ID, a.UserID); err != nil {
				// A store error is not a capacity miss; count it and
				// leave the attendee for the next sync.
				r.log.Warn("Assignment failed", "event_team_id", t.ID, "user_id", a.UserID, "error", err)
				res.AssignFailures++
				failed = true
				break
			}
			rosters[t.ID] = append(rosters[t.ID], eventmodels.EventTeamMember{
				EventTeamID: t.ID, UserID: a.UserID, Email: a.Email,
			})
			assigned[a.UserID] = true
			res.UsersAssigned++
			placed = true

			if t.ExternalTeamID != "" {
				cctx, cancel := r.callCtx(ctx)
				err := r.workshop.AddTeamMemberByEmail(cctx, t.ExternalTeamID, a.Email)
				cancel()
				if err != nil {
					r.log.Warn("External membership push failed",
						"event_team_id", t.ID, "email", a.Email, "error", err)
				} else {
					res.ExternalSyncs++
				}
			}
			break
		}

		if !placed && !failed {
			res.Unassigned = append(res.Unassigned, a.Email)
			r.log.Info("No capacity for attendee", "user_id", a.UserID, "email", a.Email)
		}
	}
}

// removeDeclined drops members whose RSVP flipped to declined. For
// linked teams, the external state is cleaned both ways: a matching real
// member is removed by id, and a matching pending assignment is removed
// by email. A declined user can have both, so both checks always run.
func (r *Reconciler) removeDeclined(ctx context.Context, teams []eventmodels.EventTeam, rosters map[int64][]eventmodels.EventTeamMember, attendees []eventmodels.Attendee, res *Result) {
	declined := make(map[int64]string)
	for _, a := range attendees {
		if a.Status == eventmodels.AttendanceDeclined {
			declined[a.UserID] = a.Email
		}
	}
	if len(declined) == 0 {
		return
	}

	for _, t := range teams {
		for _, m := range rosters[t.ID] {
			email, isDeclined := declined[m.UserID]
			if !isDeclined {
				continue
			}

			if err := r.store.RemoveTeamMember(ctx, t.ID, m.UserID); err != nil {
				r.log.Warn("Local removal failed", "event_team_id", t.ID, "user_id", m.UserID, "error", err)
				continue
			}
			res.UsersRemoved++

			if t.ExternalTeamID != "" {
				r.removeExternal(ctx, t.ExternalTeamID, email, res)
			}
		}
	}
}

func (r *Reconciler) removeExternal(ctx context.Context, externalTeamID, email string, res *Result) {
	cctx, cancel := r.callCtx(ctx)
	users, err := r.workshop.ListTeamUsers(cctx, externalTeamID)
	cancel()
	if err != nil {
		r.log.Warn("External user listing failed", "external_team_id", externalTeamID, "error", err)
	} else {
		for _, u := range users {
			if u.Email != email {
				continue
			}
			cctx, cancel := r.callCtx(ctx)
			err := r.workshop.RemoveTeamUser(cctx, externalTeamID, u.ID)
			cancel()
			if err != nil {
				r.log.Warn("External removal failed", "external_team_id", externalTeamID, "user_id", u.ID, "error", err)
			} else {
				res.ExternalSyncs++
			}
			break
		}
	}

	// A declined user may never have materialized into a real external
	// membership, or may have a stale pending record alongside one.
	cctx, cancel = r.callCtx(ctx)
	pending, err := r.workshop.ListPendingAssignments(cctx, externalTeamID)
	cancel()
	if err != nil {
		r.log.Warn("Pending assignment listing failed", "external_team_id", externalTeamID, "error", err)
		return
	}
	for _, p := range pending {
		if p.Email != email {
			continue
		}
		cctx, cancel := r.callCtx(ctx)
		err := r.workshop.RemovePendingAssignment(cctx, email, externalTeamID)
		cancel()
		if err != nil {
			r.log.Warn("Pending assignment removal failed", "external_team_id", externalTeamID, "email", email, "error", err)
		} else {
			res.ExternalSyncs++
		}
		break
	}
}

func (r *Reconciler) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.adapterTimeout)
}

func assignedUsers(rosters map[int64][]eventmodels.EventTeamMember) map[int64]bool {
	assigned := make(map[int64]bool)
	for _, members := range rosters {
		for _, m := range members {
			assigned[m.UserID] = true
		}
	}
	return assigned
}
