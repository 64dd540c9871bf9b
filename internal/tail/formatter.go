package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/tandem/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	localID       string
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithLocalDevice marks which device id is this one in prime changes.
func WithLocalDevice(id string) FormatterOption {
	return func(f *Formatter) {
		f.localID = id
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil {
		if e.Current.Track != nil {
			data.Title = e.Current.Track.Title
			data.Artist = e.Current.Track.ArtistName
		}
		data.Context = e.Current.Context.Name
		data.Volume = e.Current.VolumePercent()
		data.Prime = e.Current.PrimeID
		data.Shuffle = e.Current.Shuffle
		data.Repeat = string(e.Current.Repeat)
	}
	if e.Device != nil {
		data.Device = e.Device.Name
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Title     string
	Artist    string
	Context   string
	Device    string
	Prime     string
	Volume    int
	Shuffle   bool
	Repeat    string
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current.HasTrack() {
			return "Now playing: " + trackLabel(e.Current.Track)
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous.HasTrack() {
			return "Finished: " + trackLabel(e.Previous.Track)
		}
		return "Track completed"

	case EventTrackSkip:
		if e.Previous.HasTrack() {
			return "Skipped: " + trackLabel(e.Previous.Track)
		}
		return "Track skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", e.Current.VolumePercent())
		}
		return "Volume changed"

	case EventPrimeChange:
		if e.Current == nil || e.Current.PrimeID == "" {
			return "Prime device cleared"
		}
		if e.Current.PrimeID == f.localID {
			return "Prime device: this device"
		}
		return "Prime device: " + e.Current.PrimeID

	case EventShuffleChange:
		if e.Current != nil && e.Current.Shuffle {
			return "Shuffle on"
		}
		return "Shuffle off"

	case EventRepeatChange:
		if e.Current != nil {
			return "Repeat: " + string(e.Current.Repeat)
		}
		return "Repeat changed"

	case EventCrossfade:
		if e.Current.HasTrack() {
			return "Crossfading into " + trackLabel(e.Current.Track)
		}
		return "Crossfading"

	case EventDeviceSeen:
		if e.Device != nil {
			return fmt.Sprintf("Device joined: %s (%s)", e.Device.Name, e.Device.ID)
		}
		return "Device joined"

	default:
		return "Unknown event"
	}
}

func trackLabel(t *core.Track) string {
	if t.ArtistName == "" {
		return t.Title
	}
	return t.ArtistName + " - " + t.Title
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventVolumeChange:
		return "🔊"
	case EventPrimeChange:
		return "👑"
	case EventShuffleChange:
		return "🔀"
	case EventRepeatChange:
		return "🔁"
	case EventCrossfade:
		return "🌊"
	case EventDeviceSeen:
		return "📱"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventTrackSkip:
		return "track_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventVolumeChange:
		return "volume_change"
	case EventPrimeChange:
		return "prime_change"
	case EventShuffleChange:
		return "shuffle_change"
	case EventRepeatChange:
		return "repeat_change"
	case EventCrossfade:
		return "crossfade"
	case EventDeviceSeen:
		return "device_seen"
	default:
		return "unknown"
	}
}
