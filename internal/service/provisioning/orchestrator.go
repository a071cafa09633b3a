package provisioning

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
	"github.com/tgmstudios/mrm360-sub002/internal/integrations"
	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	taskmodels "github.com/tgmstudios/mrm360-sub002/internal/models/tasks"
	teammodels "github.com/tgmstudios/mrm360-sub002/internal/models/teams"
)

// CreationOrder is the fixed integration order for create and update
// intents. Later steps may depend on ids produced by earlier ones, so
// the order is part of the contract.
var CreationOrder = []string{
	integrations.Directory,
	integrations.Wiki,
	integrations.Groupware,
	integrations.VCS,
	integrations.Chat,
}

// DeletionOrder runs the exact reverse: later-created resources
// typically reference earlier ones.
var DeletionOrder = []string{
	integrations.Chat,
	integrations.VCS,
	integrations.Groupware,
	integrations.Wiki,
	integrations.Directory,
}

// mandatory integrations flip the whole task to failed when they break;
// the rest only produce warnings.
var mandatory = map[string]bool{
	integrations.Directory: true,
	integrations.Groupware: true,
}

// IntegrationResult captures one integration's outcome inside a
// provisioning run.
type IntegrationResult struct {
	Integration string        `json:"integration"`
	Skipped     bool          `json:"skipped,omitempty"`
	ExternalID  string        `json:"external_id,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	ErrorMsg    string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Warnings    []string      `json:"warnings,omitempty"`
	Err         error         `json:"-"`
}

// Result aggregates a whole provisioning run. Partial successes are kept
// even when Success is false.
type Result struct {
	Action   string              `json:"action"`
	Success  bool                `json:"success"`
	Results  []IntegrationResult `json:"results"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Err      error               `json:"-"`
}

// Observer is notified after each integration finishes, in order. The
// worker uses it to mark subtasks as the run progresses.
type Observer func(index int, res IntegrationResult)

// stepFunc performs one integration's work and reports the external id
// it produced, a human-readable detail, and any non-fatal warnings.
type stepFunc func(ctx context.Context) (externalID, detail string, warnings []string, err error)

// Orchestrator turns one lifecycle intent into an ordered set of
// per-system operations. It never retries (the queue does) and adapter
// failures never escape it; only structural errors propagate.
type Orchestrator struct {
	adapters       integrations.Adapters
	store          TeamStore
	log            *logger.Logger
	adapterTimeout time.Duration
}

// NewOrchestrator builds an orchestrator over injected adapters and store.
func NewOrchestrator(adapters integrations.Adapters, store TeamStore, adapterTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		adapters:       adapters,
		store:          store,
		log:            logger.NewLogger("provisioning"),
		adapterTimeout: adapterTimeout,
	}
}

// SubtaskNames returns the integration order a task for this intent will
// evaluate, which is also the fixed subtask set.
func SubtaskNames(intent intents.Intent) []string {
	if intent.Kind() == intents.KindDeleteTeam {
		return DeletionOrder
	}
	return CreationOrder
}

// Provision executes one team lifecycle intent. It is safe to call twice
// for the same intent: recorded refs short-circuit re-creation.
func (o *Orchestrator) Provision(ctx context.Context, intent intents.Intent, observe Observer) (*Result, error) {
	switch in := intent.(type) {
	case *intents.CreateTeam:
		return o.create(ctx, in, observe)
	case *intents.UpdateTeam:
		return o.update(ctx, in, observe)
	case *intents.DeleteTeam:
		return o.delete(ctx, in, observe)
	default:
		return nil, apperrors.NewValidation("orchestrator cannot handle intent kind %q", intent.Kind())
	}
}

func (o *Orchestrator) create(ctx context.Context, in *intents.CreateTeam, observe Observer) (*Result, error) {
	res := &Result{Action: intents.KindCreateTeam}

	parentName, known := ParentGroupFor(in.TeamKind)
	if !known {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unknown team kind %q, using parent group %q", in.TeamKind, parentName))
	}
	if err := o.store.SetParentKey(ctx, in.TeamID, parentName); err != nil {
		return nil, err
	}

	userIDs := memberIDs(in.Members)

	steps := map[string]stepFunc{
		integrations.Directory: func(ctx context.Context) (string, string, []string, error) {
			return o.createDirectory(ctx, in, parentName, userIDs)
		},
		integrations.Wiki: func(ctx context.Context) (string, string, []string, error) {
			return o.createWiki(ctx, in)
		},
		integrations.Groupware: func(ctx context.Context) (string, string, []string, error) {
			return o.createGroupware(ctx, in, userIDs)
		},
		integrations.VCS: func(ctx context.Context) (string, string, []string, error) {
			return o.createVCS(ctx, in, userIDs)
		},
		integrations.Chat: func(ctx context.Context) (string, string, []string, error) {
			return o.createChat(ctx, in, userIDs)
		},
	}

	o.runAll(ctx, res, in.TeamID, CreationOrder, in.EnabledIntegrations, steps, observe)
	o.aggregate(res, in.TeamID)
	return res, nil
}

func (o *Orchestrator) update(ctx context.Context, in *intents.UpdateTeam, observe Observer) (*Result, error) {
	res := &Result{Action: intents.KindUpdateTeam}

	team, err := o.store.GetTeam(ctx, in.TeamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, apperrors.NewNotFound("team", strconv.FormatInt(in.TeamID, 10))
	}

	// Renames are not cascaded across external systems; the ref keeps
	// the old name and an operator follows up manually.
	if in.Name != "" && in.Name != team.Name {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("team %d renamed to %q; external resources keep the old name and need manual follow-up", in.TeamID, in.Name))
	}
	if in.TeamKind != "" && in.TeamKind != team.Kind {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("team %d kind changed to %q; directory parent is not moved automatically", in.TeamID, in.TeamKind))
	}
	if len(res.Warnings) > 0 {
		if err := o.store.RenameTeam(ctx, in.TeamID, in.Name, in.TeamKind); err != nil {
			return nil, err
		}
	}

	current, err := o.store.ListMembers(ctx, in.TeamID)
	if err != nil {
		return nil, err
	}
	added, removed := diffMembers(current, in.Members)
	addedIDs := memberIDs(added)
	removedIDs := make([]string, 0, len(removed))
	for _, m := range removed {
		removedIDs = append(removedIDs, strconv.FormatInt(m.UserID, 10))
	}

	steps := map[string]stepFunc{
		integrations.Directory: func(ctx context.Context) (string, string, []string, error) {
			return o.updateDirectory(ctx, in.TeamID, addedIDs, removedIDs)
		},
		integrations.Wiki: func(ctx context.Context) (string, string, []string, error) {
			return "", "no changes", nil, nil
		},
		integrations.Groupware: func(ctx context.Context) (string, string, []string, error) {
			return o.updateGroupware(ctx, in.TeamID, addedIDs, removedIDs)
		},
		integrations.VCS: func(ctx context.Context) (string, string, []string, error) {
			return o.updateVCS(ctx, in.TeamID, addedIDs, removedIDs)
		},
		integrations.Chat: func(ctx context.Context) (string, string, []string, error) {
			return o.updateChat(ctx, in.TeamID, addedIDs)
		},
	}

	o.runAll(ctx, res, in.TeamID, CreationOrder, in.EnabledIntegrations, steps, observe)
	o.aggregate(res, in.TeamID)

	if res.Success {
		if err := o.store.ReplaceMembers(ctx, in.TeamID, in.Members); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (o *Orchestrator) delete(ctx context.Context, in *intents.DeleteTeam, observe Observer) (*Result, error) {
	res := &Result{Action: intents.KindDeleteTeam}

	steps := map[string]stepFunc{
		integrations.Chat: func(ctx context.Context) (string, string, []string, error) {
			return o.deleteChat(ctx, in.TeamID)
		},
		integrations.VCS: func(ctx context.Context) (string, string, []string, error) {
			return o.deleteVCS(ctx, in.TeamID)
		},
		integrations.Groupware: func(ctx context.Context) (string, string, []string, error) {
			return o.deleteGroupware(ctx, in.TeamID)
		},
		// The wiki contract has no delete operation; its pages stay.
		integrations.Wiki: nil,
		integrations.Directory: func(ctx context.Context) (string, string, []string, error) {
			return o.deleteDirectory(ctx, in.TeamID)
		},
	}

	o.runAll(ctx, res, in.TeamID, DeletionOrder, in.EnabledIntegrations, steps, observe)
	o.aggregate(res, in.TeamID)

	if res.Success {
		if err := o.store.DeleteTeam(ctx, in.TeamID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// runAll executes the steps in the given order, recording one
// IntegrationResult per integration. A failure in one step never
// prevents attempting the next.
func (o *Orchestrator) runAll(ctx context.Context, res *Result, teamID int64, order, enabledList []string, steps map[string]stepFunc, observe Observer) {
	for i, name := range order {
		step := steps[name]
		r := o.runStep(ctx, name, step != nil && enabled(name, enabledList), step)

		if r.Err == nil && !r.Skipped && r.ExternalID != "" && res.Action != intents.KindDeleteTeam {
			// Persist the ref immediately so partial success survives a
			// later failure.
			ref := &teammodels.ExternalGroupRef{TeamID: teamID, SystemName: name, ExternalID: r.ExternalID}
			if err := o.store.UpsertRef(ctx, ref); err != nil {
				o.log.Error("Failed to record external ref", "team_id", teamID, "system", name, "error", err)
				r.Warnings = append(r.Warnings, fmt.Sprintf("%s: external ref not recorded: %v", name, err))
			}
		}

		res.Results = append(res.Results, r)
		res.Warnings = append(res.Warnings, r.Warnings...)
		if observe != nil {
			observe(i, r)
		}
	}
}

func (o *Orchestrator) runStep(ctx context.Context, integration string, isEnabled bool, step stepFunc) (res IntegrationResult) {
	res.Integration = integration
	if !isEnabled {
		res.Skipped = true
		res.Detail = taskmodels.SkippedResult
		return res
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = apperrors.NewAdapter(integration, fmt.Errorf("panic: %v", r))
			res.ErrorMsg = res.Err.Error()
		}
		res.Duration = time.Since(start)
	}()

	externalID, detail, warnings, err := step(ctx)
	res.Warnings = warnings
	if err != nil {
		res.Err = apperrors.NewAdapter(integration, err)
		res.ErrorMsg = res.Err.Error()
		return res
	}
	res.ExternalID = externalID
	res.Detail = detail
	return res
}

func (o *Orchestrator) aggregate(res *Result, teamID int64) {
	var merr error
	for _, r := range res.Results {
		if r.Err == nil {
			continue
		}
		if mandatory[r.Integration] {
			res.Errors = append(res.Errors, r.Err.Error())
			merr = multierr.Append(merr, r.Err)
		} else {
			res.Warnings = append(res.Warnings, r.Err.Error())
		}
	}

	res.Success = len(res.Errors) == 0
	if !res.Success {
		res.Err = &apperrors.PartialFailure{Errors: res.Errors, Warnings: res.Warnings}
		o.log.Error("Provisioning failed", "team_id", teamID, "action", res.Action, "error", merr)
		return
	}
	o.log.Info("Provisioning finished", "team_id", teamID, "action", res.Action, "warnings", len(res.Warnings))
}

// --- create steps ---

func (o *Orchestrator) createDirectory(ctx context.Context, in *intents.CreateTeam, parentName string, userIDs []string) (string, string, []string, error) {
	if ref, err := o.store.GetRef(ctx, in.TeamID, integrations.Directory); err != nil {
		return "", "", nil, err
	} else if ref != nil {
		return ref.ExternalID, "already provisioned", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	parent, err := o.adapters.Directory.GetParentGroup(cctx, parentName)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	cctx, cancel = o.callCtx(ctx)
	group, err := o.adapters.Directory.CreateGroup(cctx, in.Name, in.Description, parent.ID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if len(userIDs) > 0 {
		cctx, cancel = o.callCtx(ctx)
		err = o.adapters.Directory.AddUsers(cctx, group.ID, userIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}

	return group.ID, fmt.Sprintf("group under %q", parentName), nil, nil
}

func (o *Orchestrator) createWiki(ctx context.Context, in *intents.CreateTeam) (string, string, []string, error) {
	if ref, err := o.store.GetRef(ctx, in.TeamID, integrations.Wiki); err != nil {
		return "", "", nil, err
	} else if ref != nil {
		return ref.ExternalID, "already provisioned", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	page, err := o.adapters.Wiki.CreateTeamIndexPage(cctx, in.TeamKind, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}
	return page.Path, "index page", nil, nil
}

func (o *Orchestrator) createGroupware(ctx context.Context, in *intents.CreateTeam, userIDs []string) (string, string, []string, error) {
	var warnings []string

	groupID := ""
	if ref, err := o.store.GetRef(ctx, in.TeamID, integrations.Groupware); err != nil {
		return "", "", nil, err
	} else if ref != nil {
		groupID = ref.ExternalID
	}

	if groupID == "" {
		cctx, cancel := o.callCtx(ctx)
		group, err := o.adapters.Groupware.CreateGroup(cctx, in.Name)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
		groupID = group.ID

		if len(userIDs) > 0 {
			cctx, cancel = o.callCtx(ctx)
			err = o.adapters.Groupware.AddUsersToGroup(cctx, groupID, userIDs)
			cancel()
			if err != nil {
				return "", "", nil, err
			}
		}
	}

	// The three sub-resources are each optional: a failure is recorded
	// and the rest are still attempted.
	cctx, cancel := o.callCtx(ctx)
	if err := o.adapters.Groupware.CreateFolder(cctx, in.Name, groupID); err != nil {
		warnings = append(warnings, fmt.Sprintf("groupware folder: %v", err))
	}
	cancel()

	cctx, cancel = o.callCtx(ctx)
	err := o.adapters.Groupware.CreateCalendar(cctx, in.Name, groupID)
	cancel()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("groupware calendar: %v", err))
	} else {
		cctx, cancel = o.callCtx(ctx)
		if err := o.adapters.Groupware.GrantGroupCalendarAccess(cctx, in.Name, groupID, "read-write"); err != nil {
			warnings = append(warnings, fmt.Sprintf("groupware calendar access: %v", err))
		}
		cancel()
	}

	cctx, cancel = o.callCtx(ctx)
	if err := o.adapters.Groupware.CreateBoard(cctx, in.Name, groupID); err != nil {
		warnings = append(warnings, fmt.Sprintf("groupware board: %v", err))
	}
	cancel()

	return groupID, "group with sub-resources", warnings, nil
}

func (o *Orchestrator) createVCS(ctx context.Context, in *intents.CreateTeam, userIDs []string) (string, string, []string, error) {
	if ref, err := o.store.GetRef(ctx, in.TeamID, integrations.VCS); err != nil {
		return "", "", nil, err
	} else if ref != nil {
		return ref.ExternalID, "already provisioned", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	team, err := o.adapters.VCS.CreateTeam(cctx, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	cctx, cancel = o.callCtx(ctx)
	repo, err := o.adapters.VCS.CreateRepository(cctx, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	cctx, cancel = o.callCtx(ctx)
	err = o.adapters.VCS.AddTeamToRepository(cctx, team.ID, repo.ID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if len(userIDs) > 0 {
		cctx, cancel = o.callCtx(ctx)
		err = o.adapters.VCS.AddUsersToTeam(cctx, team.ID, userIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}

	return vcsRef(team.ID, repo.ID), "team and repository", nil, nil
}

func (o *Orchestrator) createChat(ctx context.Context, in *intents.CreateTeam, userIDs []string) (string, string, []string, error) {
	if ref, err := o.store.GetRef(ctx, in.TeamID, integrations.Chat); err != nil {
		return "", "", nil, err
	} else if ref != nil {
		return ref.ExternalID, "already provisioned", nil, nil
	}

	// Chat operations are queued on the chat system's side; each call
	// only yields an accepted-job id, never the final state.
	var jobIDs []string

	cctx, cancel := o.callCtx(ctx)
	jobID, err := o.adapters.Chat.CreateRole(cctx, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}
	jobIDs = append(jobIDs, jobID)

	cctx, cancel = o.callCtx(ctx)
	jobID, err = o.adapters.Chat.CreateChannel(cctx, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}
	jobIDs = append(jobIDs, jobID)

	cctx, cancel = o.callCtx(ctx)
	jobID, err = o.adapters.Chat.SetChannelPermissions(cctx, in.Name, in.Name)
	cancel()
	if err != nil {
		return "", "", nil, err
	}
	jobIDs = append(jobIDs, jobID)

	if len(userIDs) > 0 {
		cctx, cancel = o.callCtx(ctx)
		jobID, err = o.adapters.Chat.AssignRoleToUsers(cctx, in.Name, userIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
		jobIDs = append(jobIDs, jobID)
	}

	return in.Name, "accepted:" + strings.Join(jobIDs, ","), nil, nil
}

// --- update steps ---

func (o *Orchestrator) updateDirectory(ctx context.Context, teamID int64, addedIDs, removedIDs []string) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Directory)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	if len(addedIDs) > 0 {
		cctx, cancel := o.callCtx(ctx)
		err := o.adapters.Directory.AddUsers(cctx, ref.ExternalID, addedIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}
	if len(removedIDs) > 0 {
		cctx, cancel := o.callCtx(ctx)
		err := o.adapters.Directory.RemoveUsers(cctx, ref.ExternalID, removedIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}

	return ref.ExternalID, memberDelta(addedIDs, removedIDs), nil, nil
}

func (o *Orchestrator) updateGroupware(ctx context.Context, teamID int64, addedIDs, removedIDs []string) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Groupware)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	var warnings []string
	if len(addedIDs) > 0 {
		cctx, cancel := o.callCtx(ctx)
		err := o.adapters.Groupware.AddUsersToGroup(cctx, ref.ExternalID, addedIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}
	if len(removedIDs) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("groupware cannot remove %d member(s); manual follow-up needed", len(removedIDs)))
	}

	return ref.ExternalID, memberDelta(addedIDs, nil), warnings, nil
}

func (o *Orchestrator) updateVCS(ctx context.Context, teamID int64, addedIDs, removedIDs []string) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.VCS)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	vcsTeamID, _ := splitVCSRef(ref.ExternalID)
	var warnings []string
	if len(addedIDs) > 0 {
		cctx, cancel := o.callCtx(ctx)
		err := o.adapters.VCS.AddUsersToTeam(cctx, vcsTeamID, addedIDs)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}
	if len(removedIDs) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("vcs cannot remove %d member(s); manual follow-up needed", len(removedIDs)))
	}

	return ref.ExternalID, memberDelta(addedIDs, nil), warnings, nil
}

func (o *Orchestrator) updateChat(ctx context.Context, teamID int64, addedIDs []string) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Chat)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}
	if len(addedIDs) == 0 {
		return ref.ExternalID, "no changes", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	jobID, err := o.adapters.Chat.AssignRoleToUsers(cctx, ref.ExternalID, addedIDs)
	cancel()
	if err != nil {
		return "", "", nil, err
	}
	return ref.ExternalID, "accepted:" + jobID, nil, nil
}

// --- delete steps ---
// A missing ref means the resource was never provisioned (or a previous
// delete already ran); that is a no-op success, keeping repeated delete
// intents idempotent.

func (o *Orchestrator) deleteChat(ctx context.Context, teamID int64) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Chat)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	roleJob, err := o.adapters.Chat.DeleteRole(cctx, ref.ExternalID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	cctx, cancel = o.callCtx(ctx)
	chanJob, err := o.adapters.Chat.DeleteChannel(cctx, ref.ExternalID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if err := o.store.DeleteRef(ctx, teamID, integrations.Chat); err != nil {
		return "", "", nil, err
	}
	return ref.ExternalID, "accepted:" + roleJob + "," + chanJob, nil, nil
}

func (o *Orchestrator) deleteVCS(ctx context.Context, teamID int64) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.VCS)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	vcsTeamID, repoID := splitVCSRef(ref.ExternalID)

	if repoID != "" {
		cctx, cancel := o.callCtx(ctx)
		err := o.adapters.VCS.DeleteRepository(cctx, repoID)
		cancel()
		if err != nil {
			return "", "", nil, err
		}
	}

	cctx, cancel := o.callCtx(ctx)
	err = o.adapters.VCS.DeleteTeam(cctx, vcsTeamID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if err := o.store.DeleteRef(ctx, teamID, integrations.VCS); err != nil {
		return "", "", nil, err
	}
	return ref.ExternalID, "team and repository deleted", nil, nil
}

func (o *Orchestrator) deleteGroupware(ctx context.Context, teamID int64) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Groupware)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	err = o.adapters.Groupware.DeleteGroup(cctx, ref.ExternalID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if err := o.store.DeleteRef(ctx, teamID, integrations.Groupware); err != nil {
		return "", "", nil, err
	}
	return ref.ExternalID, "group deleted", nil, nil
}

func (o *Orchestrator) deleteDirectory(ctx context.Context, teamID int64) (string, string, []string, error) {
	ref, err := o.store.GetRef(ctx, teamID, integrations.Directory)
	if err != nil {
		return "", "", nil, err
	}
	if ref == nil {
		return "", "no ref recorded", nil, nil
	}

	cctx, cancel := o.callCtx(ctx)
	err = o.adapters.Directory.DeleteGroup(cctx, ref.ExternalID)
	cancel()
	if err != nil {
		return "", "", nil, err
	}

	if err := o.store.DeleteRef(ctx, teamID, integrations.Directory); err != nil {
		return "", "", nil, err
	}
	return ref.ExternalID, "group deleted", nil, nil
}

// --- helpers ---

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.adapterTimeout)
}

func enabled(integration string, enabledList []string) bool {
	for _, name := range enabledList {
		if name == integration {
			return true
		}
	}
	return false
}

func memberIDs(members []intents.Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, strconv.FormatInt(m.UserID, 10))
	}
	return ids
}

// diffMembers computes the delta between the recorded and desired member
// sets, keyed by user id.
func diffMembers(current []teammodels.TeamMember, desired []intents.Member) (added []intents.Member, removed []teammodels.TeamMember) {
	currentSet := make(map[int64]teammodels.TeamMember, len(current))
	for _, m := range current {
		currentSet[m.UserID] = m
	}
	desiredSet := make(map[int64]bool, len(desired))
	for _, m := range desired {
		desiredSet[m.UserID] = true
		if _, ok := currentSet[m.UserID]; !ok {
			added = append(added, m)
		}
	}
	for _, m := range current {
		if !desiredSet[m.UserID] {
			removed = append(removed, m)
		}
	}
	return added, removed
}

func memberDelta(addedIDs, removedIDs []string) string {
	return fmt.Sprintf("added %d, removed %d", len(addedIDs), len(removedIDs))
}

func vcsRef(teamID, repoID string) string {
	return teamID + "/" + repoID
}

func splitVCSRef(ref string) (teamID, repoID string) {
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
