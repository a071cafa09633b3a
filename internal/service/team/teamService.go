package teamService

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	teammodels "github.com/tgmstudios/mrm360-sub002/internal/models/teams"
	"github.com/tgmstudios/mrm360-sub002/internal/queue"
)

// TeamService handles team-related operations. Lifecycle requests only
// write the local rows and enqueue an intent; the actual provisioning
// runs asynchronously and is observed through the returned task id.
type TeamService struct {
	DB                  *sql.DB
	Queue               *queue.Service
	Log                 *logger.Logger
	EnabledIntegrations []string
}

// MemberRequest is one desired member inside a team request.
type MemberRequest struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

// CreateTeamRequest represents the request body for team creation
type CreateTeamRequest struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Subtype     string          `json:"subtype,omitempty"`
	Description string          `json:"description,omitempty"`
	Members     []MemberRequest `json:"members,omitempty"`
}

// UpdateTeamRequest represents the request body for team updates
type UpdateTeamRequest struct {
	Name    string          `json:"name,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Members []MemberRequest `json:"members"`
}

// PaginationResponse wraps paginated team results
type PaginationResponse struct {
	Teams      []teammodels.Team `json:"teams"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
}

// NewTeamService initializes a new team service
func NewTeamService(db *sql.DB, queueService *queue.Service, enabledIntegrations []string) *TeamService {
	return &TeamService{
		DB:                  db,
		Queue:               queueService,
		Log:                 logger.NewLogger("team-service"),
		EnabledIntegrations: enabledIntegrations,
	}
}

// CreateTeam records the team locally and enqueues a create intent.
func (ts *TeamService) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ts.currentUserID(w, r)
	if !ok {
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ts.Log.Error("Failed to decode request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Team name is required")
		return
	}

	tx, err := ts.DB.BeginTx(ctx, nil)
	if err != nil {
		ts.Log.Error("Failed to begin transaction", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	currentTime := time.Now().UTC().Unix()
	query := `
		INSERT INTO teams (team_name, kind, subtype, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, req.Name, req.Kind, req.Subtype, req.Description, userID, currentTime, currentTime)
	if err != nil {
		ts.Log.Error("Failed to create team", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create team")
		return
	}

	teamID, err := result.LastInsertId()
	if err != nil {
		ts.Log.Error("Failed to get team ID", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get team ID")
		return
	}

	query = `INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`
	for _, m := range req.Members {
		role := m.Role
		if role == "" {
			role = "member"
		}
		if _, err := tx.ExecContext(ctx, query, teamID, m.UserID, role); err != nil {
			ts.Log.Error("Failed to add user to team", "error", err, "user_id", m.UserID)
			respondWithError(w, http.StatusInternalServerError, "Failed to add user to team")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		ts.Log.Error("Failed to commit transaction", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	intent := &intents.CreateTeam{
		TeamID:              teamID,
		Name:                req.Name,
		TeamKind:            req.Kind,
		Subtype:             req.Subtype,
		Description:         req.Description,
		Members:             toIntentMembers(req.Members),
		EnabledIntegrations: ts.EnabledIntegrations,
	}
	jobID, taskID, err := ts.Queue.EnqueueIntent(ctx, intent)
	if err != nil {
		ts.Log.Error("Failed to enqueue create intent", "error", err, "team_id", teamID)
		respondWithError(w, http.StatusInternalServerError, "Failed to enqueue provisioning")
		return
	}

	ts.Log.Info("Team created", "team_id", teamID, "user_id", userID, "task_id", taskID)

	newTeam := teammodels.Team{
		ID:          teamID,
		Name:        req.Name,
		Kind:        req.Kind,
		Subtype:     req.Subtype,
		Description: req.Description,
		CreatedBy:   userID,
		CreatedAt:   currentTime,
		UpdatedAt:   currentTime,
	}
	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"team": newTeam, "job_id": jobID, "task_id": taskID,
	})
}

// GetUserTeams retrieves all teams associated with the current user
func (ts *TeamService) GetUserTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ts.currentUserID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20 // Default to 20 items per page
	}
	offset := (page - 1) * perPage

	var totalCount int
	countQuery := `
		SELECT COUNT(*)
		FROM teams t
		JOIN team_members tm ON t.team_id = tm.team_id
		WHERE tm.user_id = ?
	`
	err := ts.DB.QueryRowContext(ctx, countQuery, userID).Scan(&totalCount)
	if err != nil {
		ts.Log.Error("Failed to count teams", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get teams")
		return
	}

	query := `
		SELECT t.team_id, t.team_name, t.kind, t.created_by, t.created_at
		FROM teams t
		JOIN team_members tm ON t.team_id = tm.team_id
		WHERE tm.user_id = ?
		ORDER BY t.created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := ts.DB.QueryContext(ctx, query, userID, perPage, offset)
	if err != nil {
		ts.Log.Error("Failed to query teams", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get teams")
		return
	}
	defer rows.Close()

	var teams []teammodels.Team
	for rows.Next() {
		var t teammodels.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.CreatedBy, &t.CreatedAt); err != nil {
			ts.Log.Error("Failed to scan team row", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to process teams data")
			return
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		ts.Log.Error("Error iterating teams rows", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Error processing teams data")
		return
	}

	response := PaginationResponse{
		Teams:      teams,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
	}

	ts.Log.Info("Teams fetched from database", "user_id", userID, "count", len(teams))
	respondWithJSON(w, http.StatusOK, response)
}

// GetTeam retrieves a specific team with its members and external refs.
func (ts *TeamService) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := ts.currentUserID(w, r); !ok {
		return
	}

	teamID, ok := ts.pathTeamID(w, r)
	if !ok {
		return
	}

	var team teammodels.Team
	var subtype, description, parentKey sql.NullString
	query := `
		SELECT team_id, team_name, kind, subtype, description, parent_key, created_by, created_at, updated_at
		FROM teams WHERE team_id = ?
	`
	err := ts.DB.QueryRowContext(ctx, query, teamID).Scan(
		&team.ID, &team.Name, &team.Kind, &subtype, &description, &parentKey,
		&team.CreatedBy, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ts.Log.Warn("Team not found", "team_id", teamID)
			respondWithError(w, http.StatusNotFound, "Team not found")
		} else {
			ts.Log.Error("Failed to query team", "error", err, "team_id", teamID)
			respondWithError(w, http.StatusInternalServerError, "Failed to get team details")
		}
		return
	}
	team.Subtype = subtype.String
	team.Description = description.String
	team.ParentKey = parentKey.String

	members, err := ts.listMembers(ctx, teamID)
	if err != nil {
		ts.Log.Error("Failed to query team members", "error", err, "team_id", teamID)
		respondWithError(w, http.StatusInternalServerError, "Failed to get team members")
		return
	}

	refs, err := ts.listRefs(ctx, teamID)
	if err != nil {
		ts.Log.Error("Failed to query external refs", "error", err, "team_id", teamID)
		respondWithError(w, http.StatusInternalServerError, "Failed to get external refs")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"team": team, "members": members, "external_refs": refs,
	})
}

// UpdateTeam enqueues an update intent carrying the desired member set.
// The worker diffs it against the recorded members and only touches
// systems that have a ref.
func (ts *TeamService) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ts.currentUserID(w, r)
	if !ok {
		return
	}

	teamID, ok := ts.pathTeamID(w, r)
	if !ok {
		return
	}

	var req UpdateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ts.Log.Error("Failed to decode request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var exists bool
	err := ts.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE team_id = ?)`, teamID).Scan(&exists)
	if err != nil {
		ts.Log.Error("Failed to check team", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to verify team")
		return
	}
	if !exists {
		respondWithError(w, http.StatusNotFound, "Team not found")
		return
	}

	intent := &intents.UpdateTeam{
		TeamID:              teamID,
		Name:                req.Name,
		TeamKind:            req.Kind,
		Members:             toIntentMembers(req.Members),
		EnabledIntegrations: ts.EnabledIntegrations,
	}
	jobID, taskID, err := ts.Queue.EnqueueIntent(ctx, intent)
	if err != nil {
		ts.Log.Error("Failed to enqueue update intent", "error", err, "team_id", teamID)
		respondWithError(w, http.StatusInternalServerError, "Failed to enqueue update")
		return
	}

	ts.Log.Info("Team update enqueued", "team_id", teamID, "updated_by", userID, "task_id", taskID)
	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": jobID, "task_id": taskID})
}

// DeleteTeam enqueues a delete intent; de-provisioning runs in reverse
// creation order and the local rows go away once it succeeds.
func (ts *TeamService) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ts.currentUserID(w, r)
	if !ok {
		return
	}

	teamID, ok := ts.pathTeamID(w, r)
	if !ok {
		return
	}

	var exists bool
	err := ts.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE team_id = ?)`, teamID).Scan(&exists)
	if err != nil {
		ts.Log.Error("Failed to check team", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to verify team")
		return
	}
	if !exists {
		respondWithError(w, http.StatusNotFound, "Team not found")
		return
	}

	intent := &intents.DeleteTeam{
		TeamID:              teamID,
		EnabledIntegrations: ts.EnabledIntegrations,
	}
	jobID, taskID, err := ts.Queue.EnqueueIntent(ctx, intent)
	if err != nil {
		ts.Log.Error("Failed to enqueue delete intent", "error", err, "team_id", teamID)
		respondWithError(w, http.StatusInternalServerError, "Failed to enqueue deletion")
		return
	}

	ts.Log.Info("Team deletion enqueued", "team_id", teamID, "deleted_by", userID, "task_id", taskID)
	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": jobID, "task_id": taskID})
}

func (ts *TeamService) listMembers(ctx context.Context, teamID int64) ([]teammodels.TeamMember, error) {
	query := `
		SELECT tm.team_id, tm.user_id, u.email, tm.role
		FROM team_members tm
		JOIN users u ON u.user_id = tm.user_id
		WHERE tm.team_id = ?
		ORDER BY tm.user_id
	`
	rows, err := ts.DB.QueryContext(ctx, query, teamID)
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

func (ts *TeamService) listRefs(ctx context.Context, teamID int64) ([]teammodels.ExternalGroupRef, error) {
	query := `
		SELECT team_id, system_name, external_id, created_at
		FROM external_group_refs WHERE team_id = ?
		ORDER BY system_name
	`
	rows, err := ts.DB.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []teammodels.ExternalGroupRef
	for rows.Next() {
		var ref teammodels.ExternalGroupRef
		if err := rows.Scan(&ref.TeamID, &ref.SystemName, &ref.ExternalID, &ref.CreatedAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (ts *TeamService) currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userDetails, ok := r.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		ts.Log.Error("Failed to extract user details from context")
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return 0, false
	}
	userID, err := strconv.ParseInt(fmt.Sprintf("%v", userDetails["user_id"]), 10, 64)
	if err != nil {
		ts.Log.Error("Invalid user ID in token", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	return userID, true
}

func (ts *TeamService) pathTeamID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	teamID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		ts.Log.Error("Invalid team ID in URL", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid team ID")
		return 0, false
	}
	return teamID, true
}

func toIntentMembers(members []MemberRequest) []intents.Member {
	out := make([]intents.Member, 0, len(members))
	for _, m := range members {
		out = append(out, intents.Member{UserID: m.UserID, Email: m.Email, Role: m.Role})
	}
	return out
}

// Helper functions for HTTP responses
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling JSON: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
