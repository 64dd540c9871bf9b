package core

import "time"

// CloudState is the backend's mirror of the session. Every field is optional;
// a nil field means the snapshot or event did not carry it.
type CloudState struct {
	PrimeDeviceID     *string
	TrackID           *string
	TrackArtistID     *string
	IsPlaying         *bool
	PositionMs        *int64
	PositionUpdatedAt *int64 // unix millis at which PositionMs was captured
	RepeatMode        *RepeatMode
	Shuffle           *bool
	Volume            *int // 0-100
}

// HasTrack reports whether the state names a track by its id pair.
func (c CloudState) HasTrack() bool {
	return c.TrackID != nil && c.TrackArtistID != nil && *c.TrackID != ""
}

// SessionMutation is a partial write of session fields. Nil fields are not sent.
type SessionMutation struct {
	Volume            *int
	IsPlaying         *bool
	PositionMs        *int64
	PositionUpdatedAt *int64
	Shuffle           *bool
	RepeatMode        *RepeatMode
	PrimeDeviceID     *string
}

// IsEmpty reports whether the mutation carries no fields.
func (m SessionMutation) IsEmpty() bool {
	return m.Volume == nil && m.IsPlaying == nil && m.PositionMs == nil &&
		m.PositionUpdatedAt == nil && m.Shuffle == nil && m.RepeatMode == nil &&
		m.PrimeDeviceID == nil
}

// Merge overlays the fields set in other onto m.
func (m SessionMutation) Merge(other SessionMutation) SessionMutation {
	if other.Volume != nil {
		m.Volume = other.Volume
	}
	if other.IsPlaying != nil {
		m.IsPlaying = other.IsPlaying
	}
	if other.PositionMs != nil {
		m.PositionMs = other.PositionMs
	}
	if other.PositionUpdatedAt != nil {
		m.PositionUpdatedAt = other.PositionUpdatedAt
	}
	if other.Shuffle != nil {
		m.Shuffle = other.Shuffle
	}
	if other.RepeatMode != nil {
		m.RepeatMode = other.RepeatMode
	}
	if other.PrimeDeviceID != nil {
		m.PrimeDeviceID = other.PrimeDeviceID
	}
	return m
}

// PositionMutation captures a position together with the instant it was sampled.
func PositionMutation(position time.Duration, capturedAt time.Time) SessionMutation {
	ms := position.Milliseconds()
	at := capturedAt.UnixMilli()
	return SessionMutation{PositionMs: &ms, PositionUpdatedAt: &at}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
