package domain

import "encoding/json"

// Outbound event names.
const (
	EventUserInfo              = "user:info"
	EventError                 = "error"
	EventMetricsInitial        = "metrics:initial"
	EventMetricsUpdate         = "metrics:update"
	EventReactorInitial        = "reactor:initial"
	EventReactorStatus         = "reactor:status"
	EventStationInitial        = "station:initial"
	EventStationStatus         = "station:status"
	EventUserDisconnected      = "user:disconnected"
	EventInventorySummary      = "inventory:summary"
	EventInventoryAlerts       = "inventory:alerts"
	EventInventoryStats        = "inventory:stats"
	EventInventoryTransactions = "inventory:transactions"
	EventTransactionNew        = "inventory:transaction:new"
	EventReorderRequested      = "inventory:reorder:requested"
)

// Envelope is an outbound frame.
type Envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Inbound is a frame received from a client.
type Inbound struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ResponseEvent is the event name used to answer a command.
func ResponseEvent(command string) string {
	return command + ":response"
}
