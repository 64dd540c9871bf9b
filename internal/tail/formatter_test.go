package tail

import (
	"strings"
	"testing"
	"time"

	"github.com/tessro/tandem/internal/core"
)

func TestFormatter_Lines(t *testing.T) {
	prev := session("a", true, time.Minute)
	curr := session("b", true, 0)
	curr.PrimeID = "SELF01"
	ts := time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local)

	tests := []struct {
		name  string
		opts  []FormatterOption
		event Event
		want  string
	}{
		{
			name:  "track change",
			event: Event{Type: EventTrackChange, Current: &curr},
			want:  "🎵 Now playing: Artist - Song b",
		},
		{
			name:  "skip without emoji",
			opts:  []FormatterOption{WithEmoji(false)},
			event: Event{Type: EventTrackSkip, Previous: &prev, Current: &curr},
			want:  "Skipped: Artist - Song a",
		},
		{
			name:  "timestamp",
			opts:  []FormatterOption{WithEmoji(false), WithTimestamp(true)},
			event: Event{Type: EventPause, Timestamp: ts, Current: &curr},
			want:  "09:30:15 Paused",
		},
		{
			name:  "prime is this device",
			opts:  []FormatterOption{WithEmoji(false), WithLocalDevice("SELF01")},
			event: Event{Type: EventPrimeChange, Current: &curr},
			want:  "Prime device: this device",
		},
		{
			name:  "prime is another device",
			opts:  []FormatterOption{WithEmoji(false), WithLocalDevice("OTHER1")},
			event: Event{Type: EventPrimeChange, Current: &curr},
			want:  "Prime device: SELF01",
		},
		{
			name:  "device seen",
			opts:  []FormatterOption{WithEmoji(false)},
			event: Event{Type: EventDeviceSeen, Device: &core.Device{ID: "ABC123", Name: "iPhone"}},
			want:  "Device joined: iPhone (ABC123)",
		},
		{
			name:  "volume",
			opts:  []FormatterOption{WithEmoji(false)},
			event: Event{Type: EventVolumeChange, Current: &curr},
			want:  "Volume: 50%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewFormatter(tt.opts...).Format(tt.event); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatter_Template(t *testing.T) {
	curr := session("b", true, 0)
	curr.Shuffle = true
	f := NewFormatter(WithTemplate("{{.Type}}|{{.Artist}}|{{.Title}}|{{.Volume}}|{{.Shuffle}}"))

	got := f.Format(Event{Type: EventShuffleChange, Current: &curr})
	if got != "shuffle_change|Artist|Song b|50|true" {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatter_BadTemplateFallsBack(t *testing.T) {
	f := NewFormatter(WithTemplate("{{.Nope"), WithEmoji(false))
	if got := f.Format(Event{Type: EventResume}); !strings.Contains(got, "Resumed") {
		t.Errorf("Format() = %q", got)
	}
}
