package teammodels

// Team represents a team entity mirrored across the external systems.
type Team struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Subtype     string `json:"subtype,omitempty"`
	Description string `json:"description,omitempty"`
	ParentKey   string `json:"parent_key,omitempty"`
	CreatedBy   int64  `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// TeamMember represents a team membership with role. A user appears at
// most once per team.
type TeamMember struct {
	TeamID int64  `json:"team_id"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// ExternalGroupRef maps a team to its identifier on one external system.
// At most one ref per (team, system); absence means not yet provisioned
// there, which is a normal state.
type ExternalGroupRef struct {
	TeamID     int64  `json:"team_id"`
	SystemName string `json:"system_name"`
	ExternalID string `json:"external_id"`
	CreatedAt  int64  `json:"created_at"`
}
