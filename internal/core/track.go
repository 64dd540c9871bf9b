package core

import "time"

// ContextType identifies the kind of entity a play queue was built from.
type ContextType string

const (
	ContextAlbum    ContextType = "ALBUM"
	ContextArtist   ContextType = "ARTIST"
	ContextPlaylist ContextType = "PLAYLIST"
	ContextSong     ContextType = "SONG"
)

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextAlbum, ContextArtist, ContextPlaylist, ContextSong:
		return true
	}
	return false
}

// Track represents a playable audio track. Tracks are immutable once fetched.
type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	ArtistID   string        `json:"artist_id"`
	ArtistName string        `json:"artist_name"`
	Duration   time.Duration `json:"duration"`
	ImageURL   string        `json:"image_url,omitempty"`
}

// SameAs reports whether t refers to the track identified by the id pair.
func (t *Track) SameAs(trackID, artistID string) bool {
	return t != nil && t.ID == trackID && t.ArtistID == artistID
}

// PlaybackContext is the entity a queue was built from.
type PlaybackContext struct {
	ID   string      `json:"id"`
	Type ContextType `json:"type"`
	Name string      `json:"name,omitempty"`
}

// IsZero reports whether no context has been set.
func (c PlaybackContext) IsZero() bool {
	return c.ID == ""
}

// PreparedItem is a pre-resolved successor held ready for a crossfade.
type PreparedItem struct {
	Track   Track
	URL     string
	Context PlaybackContext
}

// PlayRequest identifies a track to resolve into a playable URL.
type PlayRequest struct {
	TrackID     string
	ArtistID    string
	ContextID   string
	ContextType ContextType
}
