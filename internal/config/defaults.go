package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Region: "eu-central-1",
		},
		Playback: PlaybackConfig{
			DefaultVolume:     100,
			FadeDuration:      D(200 * time.Millisecond),
			FadeSteps:         10,
			CrossfadeDuration: D(5 * time.Second),
			CrossfadeSteps:    50,
			PrepareWindow:     D(20 * time.Second),
			PrepareFloor:      D(5 * time.Second),
			CrossfadeWindow:   D(10 * time.Second),
			RestartThreshold:  D(3 * time.Second),
			TickInterval:      D(250 * time.Millisecond),
		},
		Sync: SyncConfig{
			PlayDebounce:      D(200 * time.Millisecond),
			VolumeDebounce:    D(500 * time.Millisecond),
			ShuffleDebounce:   D(500 * time.Millisecond),
			RepeatDebounce:    D(500 * time.Millisecond),
			HeartbeatInterval: D(5 * time.Minute),
			DeviceTTL:         D(15 * time.Minute),
			RequestTimeout:    D(10 * time.Second),
			SeekTolerance:     D(500 * time.Millisecond),
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: D(500 * time.Millisecond),
		},
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Backend
	if c.Backend.Region == "" {
		c.Backend.Region = d.Backend.Region
	}
	if c.Backend.RealtimeURL == "" {
		c.Backend.RealtimeURL = RealtimeURLFor(c.Backend.GraphQLURL)
	}
	if c.Backend.AuthURL == "" {
		c.Backend.AuthURL = "https://cognito-idp." + c.Backend.Region + ".amazonaws.com/"
	}

	// Playback
	p, dp := &c.Playback, d.Playback
	if p.DefaultVolume == 0 {
		p.DefaultVolume = dp.DefaultVolume
	}
	fillDuration(&p.FadeDuration, dp.FadeDuration)
	fillInt(&p.FadeSteps, dp.FadeSteps)
	fillDuration(&p.CrossfadeDuration, dp.CrossfadeDuration)
	fillInt(&p.CrossfadeSteps, dp.CrossfadeSteps)
	fillDuration(&p.PrepareWindow, dp.PrepareWindow)
	fillDuration(&p.PrepareFloor, dp.PrepareFloor)
	fillDuration(&p.CrossfadeWindow, dp.CrossfadeWindow)
	fillDuration(&p.RestartThreshold, dp.RestartThreshold)
	fillDuration(&p.TickInterval, dp.TickInterval)

	// Sync
	s, ds := &c.Sync, d.Sync
	fillDuration(&s.PlayDebounce, ds.PlayDebounce)
	fillDuration(&s.VolumeDebounce, ds.VolumeDebounce)
	fillDuration(&s.ShuffleDebounce, ds.ShuffleDebounce)
	fillDuration(&s.RepeatDebounce, ds.RepeatDebounce)
	fillDuration(&s.HeartbeatInterval, ds.HeartbeatInterval)
	fillDuration(&s.RequestTimeout, ds.RequestTimeout)
	fillDuration(&s.SeekTolerance, ds.SeekTolerance)
	if s.DeviceTTL.Duration == 0 {
		s.DeviceTTL = D(3 * s.HeartbeatInterval.Duration)
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	fillDuration(&c.TUI.RefreshInterval, d.TUI.RefreshInterval)

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}

	// Data
	if c.Data.Dir == "" {
		c.Data.Dir = d.Data.Dir
	}
}

// RealtimeURLFor derives the realtime websocket endpoint from an AppSync GraphQL endpoint.
func RealtimeURLFor(graphqlURL string) string {
	if graphqlURL == "" {
		return ""
	}
	u := strings.Replace(graphqlURL, "https://", "wss://", 1)
	return strings.Replace(u, "appsync-api", "appsync-realtime-api", 1)
}

func fillDuration(dst *Duration, def Duration) {
	if dst.Duration == 0 {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tandem")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tandem"
	}
	return filepath.Join(home, ".local", "share", "tandem")
}
