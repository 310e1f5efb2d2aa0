package services

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskhive/taskhive-be/internal/models"
)

// Broadcaster fans an event out to connected clients. The websocket hub
// implements it; a nil Broadcaster disables the live feed.
type Broadcaster interface {
	BroadcastJSON(action string, payload interface{})
}

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, userID *string)
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records domain events (logins, task changes, reminder
// outcomes) and pushes them to the live feed.
type EventService struct {
	db  *sql.DB
	hub Broadcaster
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, hub Broadcaster) *EventService {
	return &EventService{db: db, hub: hub}
}

// CreateEvent logs a new event. Event writes are best-effort bookkeeping:
// a failure is logged, never propagated into the calling operation.
func (s *EventService) CreateEvent(eventType, level, message string, userID *string) {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		UserID:  userID,
	}

	_, err := s.db.Exec("INSERT INTO events (id, type, level, message, user_id) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.UserID)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to record event")
		return
	}

	if s.hub != nil {
		s.hub.BroadcastJSON("event", event)
	}
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.UserID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
