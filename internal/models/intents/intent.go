package intents

import (
	"encoding/json"

	"github.com/tgmstudios/mrm360-sub002/internal/apperrors"
)

// Intent kinds carried by queue jobs.
const (
	KindCreateTeam = "create_team"
	KindUpdateTeam = "update_team"
	KindDeleteTeam = "delete_team"
	KindSyncTeams  = "sync_teams"
)

// Sync modes for a SyncTeams intent.
const (
	ModeAutoAssign     = "auto_assign"
	ModeRemoveDeclined = "remove_declined"
	ModeBoth           = "both"
)

// Intent is the sealed set of lifecycle actions a job can carry. Each
// variant has its own typed payload; workers dispatch with an exhaustive
// type switch instead of string-keyed branching.
type Intent interface {
	Kind() string
}

// Member is a desired team member inside a create/update payload.
type Member struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

// CreateTeam provisions a new team on every enabled integration.
type CreateTeam struct {
	TeamID              int64    `json:"team_id"`
	Name                string   `json:"name"`
	TeamKind            string   `json:"team_kind"`
	Subtype             string   `json:"subtype,omitempty"`
	Description         string   `json:"description,omitempty"`
	Members             []Member `json:"members,omitempty"`
	EnabledIntegrations []string `json:"enabled_integrations"`
}

func (CreateTeam) Kind() string { return KindCreateTeam }

// UpdateTeam reconciles membership changes and records rename warnings.
type UpdateTeam struct {
	TeamID              int64    `json:"team_id"`
	Name                string   `json:"name,omitempty"`
	TeamKind            string   `json:"team_kind,omitempty"`
	Members             []Member `json:"members"`
	EnabledIntegrations []string `json:"enabled_integrations"`
}

func (UpdateTeam) Kind() string { return KindUpdateTeam }

// DeleteTeam de-provisions a team in reverse creation order.
type DeleteTeam struct {
	TeamID              int64    `json:"team_id"`
	EnabledIntegrations []string `json:"enabled_integrations"`
}

func (DeleteTeam) Kind() string { return KindDeleteTeam }

// SyncTeams reconciles one event's sub-team membership.
type SyncTeams struct {
	EventID int64  `json:"event_id"`
	Mode    string `json:"mode"`
}

func (SyncTeams) Kind() string { return KindSyncTeams }

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes an intent into the tagged envelope stored in the
// jobs table.
func Encode(intent Intent) ([]byte, error) {
	payload, err := json.Marshal(intent)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: intent.Kind(), Payload: payload})
}

// Decode parses a stored envelope back into its typed intent. An unknown
// kind is a ValidationError, not a silent no-op.
func Decode(data []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.NewValidation("malformed intent envelope: %v", err)
	}

	var intent Intent
	switch env.Kind {
	case KindCreateTeam:
		intent = &CreateTeam{}
	case KindUpdateTeam:
		intent = &UpdateTeam{}
	case KindDeleteTeam:
		intent = &DeleteTeam{}
	case KindSyncTeams:
		intent = &SyncTeams{}
	default:
		return nil, apperrors.NewValidation("unknown intent kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, intent); err != nil {
		return nil, apperrors.NewValidation("malformed %s payload: %v", env.Kind, err)
	}
	return intent, nil
}
