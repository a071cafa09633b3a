package eventService

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	eventmodels "github.com/tgmstudios/mrm360-sub002/internal/models/events"
	"github.com/tgmstudios/mrm360-sub002/internal/models/intents"
	"github.com/tgmstudios/mrm360-sub002/internal/queue"
)

// EventService handles events, RSVPs and team sync requests.
type EventService struct {
	DB    *sql.DB
	Queue *queue.Service
	Log   *logger.Logger
}

// CreateEventRequest represents the request body for event creation
type CreateEventRequest struct {
	Title          string `json:"title"`
	WorkshopID     string `json:"workshop_id,omitempty"`
	MembersPerTeam int    `json:"members_per_team,omitempty"`
}

// AttendanceRequest sets one user's RSVP status.
type AttendanceRequest struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// NewEventService initializes a new event service
func NewEventService(db *sql.DB, queueService *queue.Service) *EventService {
	return &EventService{
		DB:    db,
		Queue: queueService,
		Log:   logger.NewLogger("event-service"),
	}
}

// CreateEvent inserts a new event.
func (es *EventService) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		es.Log.Error("Failed to decode request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondWithError(w, http.StatusBadRequest, "Event title is required")
		return
	}

	currentTime := time.Now().UTC().Unix()
	query := `INSERT INTO events (title, workshop_id, members_per_team, created_at) VALUES (?, ?, ?, ?)`
	var workshopID interface{}
	if req.WorkshopID != "" {
		workshopID = req.WorkshopID
	}
	result, err := es.DB.ExecContext(ctx, query, req.Title, workshopID, req.MembersPerTeam, currentTime)
	if err != nil {
		es.Log.Error("Failed to create event", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		es.Log.Error("Failed to get event ID", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get event ID")
		return
	}

	es.Log.Info("Event created", "event_id", eventID)
	respondWithJSON(w, http.StatusCreated, eventmodels.Event{
		ID:             eventID,
		Title:          req.Title,
		WorkshopID:     req.WorkshopID,
		MembersPerTeam: req.MembersPerTeam,
		CreatedAt:      currentTime,
	})
}

// SetAttendance upserts one RSVP row for the event.
func (es *EventService) SetAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, ok := es.pathEventID(w, r)
	if !ok {
		return
	}

	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		es.Log.Error("Failed to decode request body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Status {
	case eventmodels.AttendanceConfirmed, eventmodels.AttendanceDeclined, eventmodels.AttendanceInvited:
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid attendance status")
		return
	}

	if !es.eventExists(ctx, w, eventID) {
		return
	}

	query := `
		INSERT INTO attendance (event_id, user_id, status) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status)
	`
	if _, err := es.DB.ExecContext(ctx, query, eventID, req.UserID, req.Status); err != nil {
		es.Log.Error("Failed to set attendance", "error", err, "event_id", eventID, "user_id", req.UserID)
		respondWithError(w, http.StatusInternalServerError, "Failed to set attendance")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"event_id": eventID, "user_id": req.UserID, "status": req.Status})
}

// SyncTeams enqueues a reconciliation run for the event. Mode defaults
// to both (auto-assign plus remove-declined).
func (es *EventService) SyncTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, ok := es.pathEventID(w, r)
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = intents.ModeBoth
	}
	switch mode {
	case intents.ModeAutoAssign, intents.ModeRemoveDeclined, intents.ModeBoth:
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid sync mode")
		return
	}

	if !es.eventExists(ctx, w, eventID) {
		return
	}

	jobID, taskID, err := es.Queue.EnqueueIntent(ctx, &intents.SyncTeams{EventID: eventID, Mode: mode})
	if err != nil {
		es.Log.Error("Failed to enqueue sync intent", "error", err, "event_id", eventID)
		respondWithError(w, http.StatusInternalServerError, "Failed to enqueue sync")
		return
	}

	es.Log.Info("Team sync enqueued", "event_id", eventID, "mode", mode, "task_id", taskID)
	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": jobID, "task_id": taskID})
}

func (es *EventService) eventExists(ctx context.Context, w http.ResponseWriter, eventID int64) bool {
	var exists bool
	err := es.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE event_id = ?)`, eventID).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		es.Log.Error("Failed to check event", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to verify event")
		return false
	}
	if !exists {
		respondWithError(w, http.StatusNotFound, "Event not found")
		return false
	}
	return true
}

func (es *EventService) pathEventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	eventID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		es.Log.Error("Invalid event ID in URL", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid event ID")
		return 0, false
	}
	return eventID, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
