package core

import (
	"testing"
	"time"
)

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RepeatMode
		wantErr bool
	}{
		{"none", RepeatNone, false},
		{"NONE", RepeatNone, false},
		{"ALL", RepeatAll, false},
		{"one", RepeatOne, false},
		{" One ", RepeatOne, false},
		{"off", RepeatNone, false},
		{"twice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepeatMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepeatMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRepeatMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepeatMode_Next(t *testing.T) {
	m := RepeatNone
	want := []RepeatMode{RepeatAll, RepeatOne, RepeatNone, RepeatAll}
	for i, w := range want {
		m = m.Next()
		if m != w {
			t.Errorf("step %d: Next() = %q, want %q", i, m, w)
		}
	}
}

func TestVolumeConversions(t *testing.T) {
	tests := []struct {
		percent int
		volume  float64
	}{
		{0, 0},
		{50, 0.5},
		{100, 1},
		{150, 1},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := PercentToVolume(tt.percent); got != tt.volume {
			t.Errorf("PercentToVolume(%d) = %v, want %v", tt.percent, got, tt.volume)
		}
	}

	if got := VolumeToPercent(0.337); got != 34 {
		t.Errorf("VolumeToPercent(0.337) = %d, want 34", got)
	}
	if got := VolumeToPercent(2); got != 100 {
		t.Errorf("VolumeToPercent(2) = %d, want 100", got)
	}
}

func TestSession_Progress(t *testing.T) {
	s := &Session{Position: 30 * time.Second, Duration: 2 * time.Minute}
	if got := s.ProgressPercent(); got != 25 {
		t.Errorf("ProgressPercent() = %v, want 25", got)
	}
	if got := s.Remaining(); got != 90*time.Second {
		t.Errorf("Remaining() = %v, want 90s", got)
	}

	var empty *Session
	if empty.HasTrack() {
		t.Error("nil session reports a track")
	}
	if empty.ProgressPercent() != 0 {
		t.Error("nil session reports progress")
	}
}

func TestSessionMutation_Merge(t *testing.T) {
	m := SessionMutation{Volume: Ptr(10)}
	m = m.Merge(SessionMutation{Volume: Ptr(20), IsPlaying: Ptr(true)})

	if *m.Volume != 20 {
		t.Errorf("Volume = %d, want 20", *m.Volume)
	}
	if m.IsPlaying == nil || !*m.IsPlaying {
		t.Error("IsPlaying not merged")
	}
	if (SessionMutation{}).IsEmpty() != true {
		t.Error("zero mutation is not empty")
	}
}
