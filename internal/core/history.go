package core

import "time"

// HistoryEntry represents a recently played track.
type HistoryEntry struct {
	Track    Track
	Context  PlaybackContext
	DeviceID string
	PlayedAt time.Time
}
