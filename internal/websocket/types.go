package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeProgress reports batch completion of a running correction
	EventTypeProgress EventType = "progress"
	// EventTypeCorrection reports one applied correction
	EventTypeCorrection EventType = "correction"
	// EventTypeRunCompleted reports the summary of a finished run
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	eventTypePong       EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RunID     string      `json:"run_id,omitempty"`
}

// ProgressEvent is sent after every completed batch
type ProgressEvent struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// CorrectionEvent describes an applied correction
type CorrectionEvent struct {
	RecordID    string `json:"record_id,omitempty"`
	Word        string `json:"word"`
	Replacement string `json:"replacement"`
	Position    int    `json:"position"`
}

// RunCompletedEvent summarizes a finished correction run
type RunCompletedEvent struct {
	Provider       string  `json:"provider"`
	RecordsChecked int64   `json:"records_checked"`
	RecordsChanged int64   `json:"records_changed"`
	Corrections    int64   `json:"corrections"`
	DurationMS     float64 `json:"duration_ms"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type         string               `json:"type"`
	Subscription *SubscriptionRequest `json:"subscription,omitempty"`
}

// SubscriptionRequest narrows the events a client receives
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
	RunID  string      `json:"run_id,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	IP           string
	UserAgent    string
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}
