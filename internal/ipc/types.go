package ipc

import (
	"time"

	"captionsaver/internal/daemon"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries daemon and session status.
type StatusResponse struct {
	daemon.Status
	PID int `json:"pid"`
}

// FinishRequest exports the current meeting.
type FinishRequest struct{}

// FinishResponse reports the exported meeting. Skipped is set when the
// meeting was empty and nothing was written.
type FinishResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
	Lines     int       `json:"lines"`
	Skipped   bool      `json:"skipped"`
}

// ResetRequest discards the current meeting.
type ResetRequest struct{}

// ResetResponse names the fresh meeting.
type ResetResponse struct {
	SessionID string `json:"session_id"`
}

// TitleRequest renames the current meeting.
type TitleRequest struct {
	Title string `json:"title"`
}

// TitleResponse echoes the stored title.
type TitleResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// LinesRequest fetches the current transcript, optionally only the last
// Tail lines.
type LinesRequest struct {
	Tail int `json:"tail"`
}

// LinesResponse contains formatted transcript lines.
type LinesResponse struct {
	SessionID string   `json:"session_id"`
	Title     string   `json:"title"`
	Lines     []string `json:"lines"`
	Total     int      `json:"total"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
