package domain

import (
	"fmt"
	"time"
)

type ReactorState string

const (
	ReactorRunning     ReactorState = "running"
	ReactorStopped     ReactorState = "stopped"
	ReactorMaintenance ReactorState = "maintenance"
)

type StationState string

const (
	StationRunning StationState = "running"
	StationPaused  StationState = "paused"
	StationStopped StationState = "stopped"
)

type Reactor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	State       ReactorState `json:"state"`
	Temperature float64      `json:"temperature"`
	Pressure    float64      `json:"pressure"`
	UpdatedBy   string       `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Station struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Line      string       `json:"line"`
	State     StationState `json:"state"`
	UpdatedBy string       `json:"updatedBy,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// PlantMetrics is the dashboard headline block.
type PlantMetrics struct {
	ActiveSessions  int       `json:"activeSessions"`
	ReactorsRunning int       `json:"reactorsRunning"`
	ReactorsTotal   int       `json:"reactorsTotal"`
	StationsRunning int       `json:"stationsRunning"`
	StationsTotal   int       `json:"stationsTotal"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// ReactorStateFor maps a control action onto the state it produces.
func ReactorStateFor(action string) (ReactorState, error) {
	switch action {
	case "start":
		return ReactorRunning, nil
	case "stop":
		return ReactorStopped, nil
	case "maintenance":
		return ReactorMaintenance, nil
	}
	return "", fmt.Errorf("%w: unknown reactor action %q", ErrInvalidInput, action)
}

func StationStateFor(action string) (StationState, error) {
	switch action {
	case "start", "resume":
		return StationRunning, nil
	case "pause":
		return StationPaused, nil
	case "stop":
		return StationStopped, nil
	}
	return "", fmt.Errorf("%w: unknown station action %q", ErrInvalidInput, action)
}
