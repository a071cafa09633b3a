package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	teammodels "github.com/tgmstudios/mrm360-sub002/internal/models/teams"
)

// TeamStore is the orchestrator's view of local team state: the team row,
// its recorded members, and the per-system external refs.
type TeamStore interface {
	GetTeam(ctx context.Context, teamID int64) (*teammodels.Team, error)
	SetParentKey(ctx context.Context, teamID int64, parentKey string) error
	RenameTeam(ctx context.Context, teamID int64, name, kind string) error
	DeleteTeam(ctx context.Context, teamID int64) error

	ListMembers(ctx context.Context, teamID int64) ([]teammodels.TeamMember, error)
	ReplaceMembers(ctx context.Context, teamID int64, members []intents.Member) error

	GetRef(ctx context.Context, teamID int64, systemName string) (*teammodels.ExternalGroupRef, error)
	UpsertRef(ctx context.Context, ref *teammodels.ExternalGroupRef) error
	DeleteRef(ctx context.Context, teamID int64, systemName string) error
}

// SQLTeamStore implements TeamStore over MySQL.
type SQLTeamStore struct {
	DB *sql.DB
}

// NewSQLTeamStore wraps the shared database pool.
func NewSQLTeamStore(db *sql.DB) *SQLTeamStore {
	return &SQLTeamStore{DB: db}
}

// GetTeam loads one team row, or nil when it does not exist.
func (s *SQLTeamStore) GetTeam(ctx context.Context, teamID int64) (*teammodels.Team, error) {
	var team teammodels.Team
	var subtype, description, parentKey sql.NullString

	query := `
		SELECT team_id, team_name, kind, subtype, description, parent_key, created_by, created_at, updated_at
		FROM teams WHERE team_id = ?
	`
	err := s.DB.QueryRowContext(ctx, query, teamID).Scan(
		&team.ID, &team.Name, &team.Kind, &subtype, &description, &parentKey,
		&team.CreatedBy, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	team.Subtype = subtype.String
	team.Description = description.String
	team.ParentKey = parentKey.String
	return &team, nil
}

// SetParentKey records the resolved directory parent on the team row.
func (s *SQLTeamStore) SetParentKey(ctx context.Context, teamID int64, parentKey string) error {
	query := `UPDATE teams SET parent_key = ?, updated_at = ? WHERE team_id = ?`
	_, err := s.DB.ExecContext(ctx, query, parentKey, time.Now().UTC().Unix(), teamID)
	return err
}

// RenameTeam applies a name and/or kind change to the team row. Empty
// arguments leave the current value in place.
func (s *SQLTeamStore) RenameTeam(ctx context.Context, teamID int64, name, kind string) error {
	query := `
		UPDATE teams
		SET team_name = COALESCE(NULLIF(?, ''), team_name),
		    kind = COALESCE(NULLIF(?, ''), kind),
		    updated_at = ?
		WHERE team_id = ?
	`
	_, err := s.DB.ExecContext(ctx, query, name, kind, time.Now().UTC().Unix(), teamID)
	return err
}

// DeleteTeam removes the team row with its members and refs.
func (s *SQLTeamStore) DeleteTeam(ctx context.Context, teamID int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	for _, query := range []string{
		`DELETE FROM team_members WHERE team_id = ?`,
		`DELETE FROM external_group_refs WHERE team_id = ?`,
		`DELETE FROM teams WHERE team_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, teamID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListMembers returns the team's recorded members.
func (s *SQLTeamStore) ListMembers(ctx context.Context, teamID int64) ([]teammodels.TeamMember, error) {
	query := `
		SELECT tm.team_id, tm.user_id, u.email, tm.role
		FROM team_members tm
		JOIN users u ON u.user_id = tm.user_id
		WHERE tm.team_id = ?
		ORDER BY tm.user_id
	`
	rows, err := s.DB.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []teammodels.TeamMember
	for rows.Next() {
		var m teammodels.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Email, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ReplaceMembers swaps the recorded member set for the desired one. Run
// after a successful update so the next diff starts from fresh state.
func (s *SQLTeamStore) ReplaceMembers(ctx context.Context, teamID int64, members []intents.Member) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
		return err
	}

	query := `INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`
	for _, m := range members {
		role := m.Role
		if role == "" {
			role = "member"
		}
		if _, err := tx.ExecContext(ctx, query, teamID, m.UserID, role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRef returns the ref for (team, system), or nil when none exists.
func (s *SQLTeamStore) GetRef(ctx context.Context, teamID int64, systemName string) (*teammodels.ExternalGroupRef, error) {
	var ref teammodels.ExternalGroupRef
	query := `
		SELECT team_id, system_name, external_id, created_at
		FROM external_group_refs WHERE team_id = ? AND system_name = ?
	`
	err := s.DB.QueryRowContext(ctx, query, teamID, systemName).Scan(
		&ref.TeamID, &ref.SystemName, &ref.ExternalID, &ref.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// UpsertRef writes the (team, system) ref, overwriting an existing one.
func (s *SQLTeamStore) UpsertRef(ctx context.Context, ref *teammodels.ExternalGroupRef) error {
	query := `
		INSERT INTO external_group_refs (team_id, system_name, external_id, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE external_id = VALUES(external_id)
	`
	_, err := s.DB.ExecContext(ctx, query, ref.TeamID, ref.SystemName, ref.ExternalID, time.Now().UTC().Unix())
	return err
}

// DeleteRef removes the (team, system) ref; removing a missing ref is a
// no-op.
func (s *SQLTeamStore) DeleteRef(ctx context.Context, teamID int64, systemName string) error {
	query := `DELETE FROM external_group_refs WHERE team_id = ? AND system_name = ?`
	_, err := s.DB.ExecContext(ctx, query, teamID, systemName)
	return err
}
