package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Device   DeviceConfig   `toml:"device"`
	Playback PlaybackConfig `toml:"playback"`
	Sync     SyncConfig     `toml:"sync"`
	TUI      TUIConfig      `toml:"tui"`
	Log      LogConfig      `toml:"log"`
	Data     DataConfig     `toml:"data"`
}

// BackendConfig holds the GraphQL and hosted-auth endpoints.
type BackendConfig struct {
	GraphQLURL       string `toml:"graphql_url"`
	RealtimeURL      string `toml:"realtime_url"`
	Region           string `toml:"region"`
	UserPoolClientID string `toml:"user_pool_client_id"`
	AuthURL          string `toml:"auth_url"`
}

// DeviceConfig holds the signals used to name and classify this device.
type DeviceConfig struct {
	Name          string `toml:"name"`
	UserAgent     string `toml:"user_agent"`
	ViewportWidth int    `toml:"viewport_width"`
}

// PlaybackConfig holds transport timing settings.
type PlaybackConfig struct {
	DefaultVolume     int      `toml:"default_volume"`
	FadeDuration      Duration `toml:"fade_duration"`
	FadeSteps         int      `toml:"fade_steps"`
	CrossfadeDuration Duration `toml:"crossfade_duration"`
	CrossfadeSteps    int      `toml:"crossfade_steps"`
	PrepareWindow     Duration `toml:"prepare_window"`
	PrepareFloor      Duration `toml:"prepare_floor"`
	CrossfadeWindow   Duration `toml:"crossfade_window"`
	RestartThreshold  Duration `toml:"restart_threshold"`
	TickInterval      Duration `toml:"tick_interval"`
}

// SyncConfig holds cloud-state synchronization settings.
type SyncConfig struct {
	PlayDebounce      Duration `toml:"play_debounce"`
	VolumeDebounce    Duration `toml:"volume_debounce"`
	ShuffleDebounce   Duration `toml:"shuffle_debounce"`
	RepeatDebounce    Duration `toml:"repeat_debounce"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	DeviceTTL         Duration `toml:"device_ttl"`
	RequestTimeout    Duration `toml:"request_timeout"`
	SeekTolerance     Duration `toml:"seek_tolerance"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string   `toml:"theme"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DataConfig holds the local state directory.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// Duration is a time.Duration written as a string such as "500ms" or "5m".
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
