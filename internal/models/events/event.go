package eventmodels

// Attendance status values for an event RSVP.
const (
	AttendanceConfirmed = "confirmed"
	AttendanceDeclined  = "declined"
	AttendanceInvited   = "invited"
)

// Event is a single session (e.g. a workshop) whose attendees are packed
// into sub-teams. WorkshopID links the event to the external workshop
// system when that system owns the teams.
type Event struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	WorkshopID     string `json:"workshop_id,omitempty"`
	MembersPerTeam int    `json:"members_per_team,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// EventTeam is a sub-team scoped to one event. ExternalTeamID is set when
// the team was mirrored from (or pushed to) the external workshop system.
type EventTeam struct {
	ID             int64  `json:"id"`
	EventID        int64  `json:"event_id"`
	TeamNumber     int    `json:"team_number"`
	ExternalTeamID string `json:"external_team_id,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// EventTeamMember links a user to a sub-team.
type EventTeamMember struct {
	EventTeamID int64  `json:"event_team_id"`
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
}

// Attendee is one RSVP row joined with the user's email.
type Attendee struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}
