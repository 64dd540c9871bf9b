package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tessro/tandem/internal/core"
)

// flexInt decodes a JSON number or a numeric string. AppSync serializes
// AWSTimestamp-like fields either way depending on the resolver.
type flexInt struct {
	Value int64
	Valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = flexInt{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexInt{}
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", data, err)
	}
	*f = flexInt{Value: int64(v), Valid: true}
	return nil
}

func (f flexInt) ptr() *int64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// cloudStateWire is the GraphQL shape of the session mirror.
type cloudStateWire struct {
	PrimeDeviceID     *string `json:"primeDeviceId"`
	TrackID           *string `json:"trackId"`
	TrackArtistID     *string `json:"trackArtistId"`
	IsPlaying         *bool   `json:"isPlaying"`
	PositionMs        flexInt `json:"positionMs"`
	PositionUpdatedAt flexInt `json:"positionUpdatedAt"`
	RepeatMode        *string `json:"repeatMode"`
	ShuffleMode       *string `json:"shuffleMode"`
	Volume            flexInt `json:"volume"`
}

func (w *cloudStateWire) toCore() core.CloudState {
	cs := core.CloudState{
		PrimeDeviceID:     w.PrimeDeviceID,
		TrackID:           w.TrackID,
		TrackArtistID:     w.TrackArtistID,
		IsPlaying:         w.IsPlaying,
		PositionMs:        w.PositionMs.ptr(),
		PositionUpdatedAt: w.PositionUpdatedAt.ptr(),
	}
	if w.Volume.Valid {
		cs.Volume = core.Ptr(int(w.Volume.Value))
	}
	if w.RepeatMode != nil {
		if m, err := core.ParseRepeatMode(*w.RepeatMode); err == nil {
			cs.RepeatMode = &m
		}
	}
	if w.ShuffleMode != nil {
		switch strings.ToUpper(*w.ShuffleMode) {
		case "ON":
			cs.Shuffle = core.Ptr(true)
		case "OFF":
			cs.Shuffle = core.Ptr(false)
		}
	}
	return cs
}

// mutationAttributes builds the attributes object of a cloudStateUpdate,
// carrying only the fields present in m.
func mutationAttributes(m core.SessionMutation) map[string]interface{} {
	attrs := make(map[string]interface{})
	if m.Volume != nil {
		attrs["volume"] = *m.Volume
	}
	if m.IsPlaying != nil {
		attrs["isPlaying"] = *m.IsPlaying
	}
	if m.PositionMs != nil {
		attrs["positionMs"] = strconv.FormatInt(*m.PositionMs, 10)
	}
	if m.PositionUpdatedAt != nil {
		attrs["positionUpdatedAt"] = strconv.FormatInt(*m.PositionUpdatedAt, 10)
	}
	if m.Shuffle != nil {
		attrs["shuffleMode"] = shuffleMode(*m.Shuffle)
	}
	if m.RepeatMode != nil {
		attrs["repeatMode"] = strings.ToUpper(string(*m.RepeatMode))
	}
	if m.PrimeDeviceID != nil {
		attrs["primeDeviceId"] = *m.PrimeDeviceID
	}
	return attrs
}

func shuffleMode(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

type artistWire struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type songWire struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Duration flexInt    `json:"duration"`
	ImageURL string     `json:"imageUrl"`
	Artist   artistWire `json:"artist"`
}

func (s *songWire) toCore() core.Track {
	image := s.ImageURL
	if image == "" {
		image = s.Artist.ImageURL
	}
	return core.Track{
		ID:         s.ID,
		Title:      s.Title,
		ArtistID:   s.Artist.ID,
		ArtistName: s.Artist.Name,
		Duration:   time.Duration(s.Duration.Value) * time.Second,
		ImageURL:   image,
	}
}

type songConnection struct {
	Edges []struct {
		Node songWire `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pageInfo"`
}

func (c *songConnection) tracks() []core.Track {
	out := make([]core.Track, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node.toCore())
	}
	return out
}

// deviceWire carries no last-seen time; the registry stamps receipt time.
type deviceWire struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

func (d *deviceWire) toCore() core.Device {
	return core.Device{
		ID:    d.DeviceID,
		Name:  d.Name,
		Class: core.DeviceClass(strings.ToUpper(d.Type)),
	}
}

// previewWire is the union of the catalog preview types, told apart by
// __typename.
type previewWire struct {
	Typename string     `json:"__typename"`
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	ArtistID string     `json:"artistId"`
	ImageURL string     `json:"imageUrl"`
	Artist   artistWire `json:"artist"`
}

func (p *previewWire) toCore() (core.CatalogItem, bool) {
	item := core.CatalogItem{ID: p.ID, Name: p.Name, ImageURL: p.ImageURL}
	switch p.Typename {
	case "ArtistPreview":
		item.Type = core.ContextArtist
	case "AlbumPreview":
		item.Type = core.ContextAlbum
		item.ArtistID = p.Artist.ID
		item.ArtistName = p.Artist.Name
	case "PlaylistPreview":
		item.Type = core.ContextPlaylist
	case "SongPreview":
		item.Type = core.ContextSong
		item.Name = p.Title
		item.ArtistID = p.ArtistID
	default:
		return item, false
	}
	return item, true
}

// previewItems converts previews, skipping types this client does not know.
func previewItems(in []previewWire) []core.CatalogItem {
	out := make([]core.CatalogItem, 0, len(in))
	for i := range in {
		if item, ok := in[i].toCore(); ok {
			out = append(out, item)
		}
	}
	return out
}

// Collection is an album, artist or playlist with its tracks.
type Collection struct {
	Context core.PlaybackContext
	Tracks  []core.Track
}
