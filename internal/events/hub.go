// Package events pushes live scheduling events to websocket subscribers.
package events

import (
	"encoding/json"
	"time"

	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

// Event types pushed to subscribers
const (
	TypeProgramStart = "program_start"
	TypeScheduleSync = "schedule_sync"
	TypeGuardTripped = "guard_tripped"
)

// Event is the JSON payload broadcast to every connected client
type Event struct {
	Type      string            `json:"type"`
	ChannelID string            `json:"channel_id,omitempty"`
	Program   *schedule.Program `json:"program,omitempty"`
	At        int64             `json:"at"`
}

// Hub fans events out to connected websocket clients. Slow clients are
// dropped rather than allowed to stall the broadcast path.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	stopChan chan struct{}
	done     chan struct{}
}

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes client registration and event fan-out until Stop is called.
// Call in a goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Log.Debug().
				Int("client_count", len(h.clients)).
				Msg("Events client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Log.Debug().
					Int("client_count", len(h.clients)).
					Msg("Events client disconnected")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's queue is full, drop it
					delete(h.clients, client)
					close(client.send)
					logger.Log.Warn().Msg("Events client too slow, dropped")
				}
			}

		case <-h.stopChan:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients
func (h *Hub) Stop() {
	close(h.stopChan)
	<-h.done
}

// Publish serializes an event and queues it for broadcast. Never blocks; if
// the hub's queue is full the event is dropped with a warning.
func (h *Hub) Publish(event Event) {
	if event.At == 0 {
		event.At = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("type", event.Type).
			Msg("Failed to marshal event")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		logger.Log.Warn().
			Str("type", event.Type).
			Msg("Event queue full, event dropped")
	}
}

// PublishProgramStart broadcasts a program_start event
func (h *Hub) PublishProgramStart(channelID string, prog schedule.Program) {
	h.Publish(Event{Type: TypeProgramStart, ChannelID: channelID, Program: &prog})
}

// PublishScheduleSync broadcasts a schedule_sync event
func (h *Hub) PublishScheduleSync(channelID string, prog schedule.Program) {
	h.Publish(Event{Type: TypeScheduleSync, ChannelID: channelID, Program: &prog})
}

// PublishGuardTripped broadcasts a guard_tripped event
func (h *Hub) PublishGuardTripped(channelID string) {
	h.Publish(Event{Type: TypeGuardTripped, ChannelID: channelID})
}
