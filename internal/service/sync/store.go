package sync

import (
	"context"
	"database/sql"
	"errors"
	"time"

	eventmodels "github.com/tgmstudios/mrm360-sub002/internal/models/events"
)

// EventStore is the reconciler's view of local event state. Rosters are
// always read fresh at sync time, never cached, because a provisioning
// job for the same team may interleave.
type EventStore interface {
	GetEvent(ctx context.Context, eventID int64) (*eventmodels.Event, error)
	ListAttendance(ctx context.Context, eventID int64) ([]eventmodels.Attendee, error)

	ListEventTeams(ctx context.Context, eventID int64) ([]eventmodels.EventTeam, error)
	CreateEventTeam(ctx context.Context, team *eventmodels.EventTeam) (int64, error)

	ListTeamMembers(ctx context.Context, eventTeamID int64) ([]eventmodels.EventTeamMember, error)
	AddTeamMember(ctx context.Context, eventTeamID, userID int64) error
	RemoveTeamMember(ctx context.Context, eventTeamID, userID int64) error
}

// SQLEventStore implements EventStore over MySQL.
type SQLEventStore struct {
	DB *sql.DB
}

// NewSQLEventStore wraps the shared database pool.
func NewSQLEventStore(db *sql.DB) *SQLEventStore {
	return &SQLEventStore{DB: db}
}

// GetEvent loads one event row, or nil when it does not exist.
func (s *SQLEventStore) GetEvent(ctx context.Context, eventID int64) (*eventmodels.Event, error) {
	var event eventmodels.Event
	var workshopID sql.NullString
	var membersPerTeam sql.NullInt64

	query := `
		SELECT event_id, title, workshop_id, members_per_team, created_at
		FROM events WHERE event_id = ?
	`
	err := s.DB.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID, &event.Title, &workshopID, &membersPerTeam, &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	event.WorkshopID = workshopID.String
	event.MembersPerTeam = int(membersPerTeam.Int64)
	return &event, nil
}

// ListAttendance returns every RSVP row for the event with user emails.
func (s *SQLEventStore) ListAttendance(ctx context.Context, eventID int64) ([]eventmodels.Attendee, error) {
	query := `
		SELECT a.user_id, u.email, a.status
		FROM attendance a
		JOIN users u ON u.user_id = a.user_id
		WHERE a.event_id = ?
		ORDER BY a.user_id
	`
	rows, err := s.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendees []eventmodels.Attendee
	for rows.Next() {
		var a eventmodels.Attendee
		if err := rows.Scan(&a.UserID, &a.Email, &a.Status); err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// ListEventTeams returns the event's sub-teams in creation order, which
// is also the first-fit assignment order.
func (s *SQLEventStore) ListEventTeams(ctx context.Context, eventID int64) ([]eventmodels.EventTeam, error) {
	query := `
		SELECT event_team_id, event_id, team_number, external_team_id, created_at
		FROM event_teams WHERE event_id = ?
		ORDER BY created_at, event_team_id
	`
	rows, err := s.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []eventmodels.EventTeam
	for rows.Next() {
		var t eventmodels.EventTeam
		var externalTeamID sql.NullString
		if err := rows.Scan(&t.ID, &t.EventID, &t.TeamNumber, &externalTeamID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ExternalTeamID = externalTeamID.String
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// CreateEventTeam inserts a sub-team and returns its id.
func (s *SQLEventStore) CreateEventTeam(ctx context.Context, team *eventmodels.EventTeam) (int64, error) {
	query := `
		INSERT INTO event_teams (event_id, team_number, external_team_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	var externalID interface{}
	if team.ExternalTeamID != "" {
		externalID = team.ExternalTeamID
	}
	result, err := s.DB.ExecContext(ctx, query, team.EventID, team.TeamNumber, externalID, time.Now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListTeamMembers returns a sub-team's members with emails.
func (s *SQLEventStore) ListTeamMembers(ctx context.Context, eventTeamID int64) ([]eventmodels.EventTeamMember, error) {
	query := `
		SELECT m.event_team_id, m.user_id, u.email
		FROM event_team_members m
		JOIN users u ON u.user_id = m.user_id
		WHERE m.event_team_id = ?
		ORDER BY m.user_id
	`
	rows, err := s.DB.QueryContext(ctx, query, eventTeamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []eventmodels.EventTeamMember
	for rows.Next() {
		var m eventmodels.EventTeamMember
		if err := rows.Scan(&m.EventTeamID, &m.UserID, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddTeamMember links a user to a sub-team.
func (s *SQLEventStore) AddTeamMember(ctx context.Context, eventTeamID, userID int64) error {
	query := `INSERT INTO event_team_members (event_team_id, user_id) VALUES (?, ?)`
	_, err := s.DB.ExecContext(ctx, query, eventTeamID, userID)
	return err
}

// RemoveTeamMember unlinks a user from a sub-team.
func (s *SQLEventStore) RemoveTeamMember(ctx context.Context, eventTeamID, userID int64) error {
	query := `DELETE FROM event_team_members WHERE event_team_id = ? AND user_id = ?`
	_, err := s.DB.ExecContext(ctx, query, eventTeamID, userID)
	return err
}
