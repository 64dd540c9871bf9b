package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Device.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("device: %w", err))
	}
	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks BackendConfig for errors.
func (c *BackendConfig) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"graphql_url":  c.GraphQLURL,
		"realtime_url": c.RealtimeURL,
		"auth_url":     c.AuthURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
			continue
		}
		if u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid %s: %q is not absolute", name, raw))
		}
	}
	return errors.Join(errs...)
}

// Validate checks DeviceConfig for errors.
func (c *DeviceConfig) Validate() error {
	if c.ViewportWidth < 0 {
		return errors.New("viewport_width must be non-negative")
	}
	return nil
}

// Validate checks PlaybackConfig for errors.
func (c *PlaybackConfig) Validate() error {
	var errs []error
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		errs = append(errs, errors.New("default_volume must be between 0 and 100"))
	}
	if c.FadeSteps < 0 || c.CrossfadeSteps < 0 {
		errs = append(errs, errors.New("step counts must be non-negative"))
	}
	if c.PrepareFloor.Duration >= c.PrepareWindow.Duration && c.PrepareWindow.Duration > 0 {
		errs = append(errs, errors.New("prepare_floor must be below prepare_window"))
	}
	if c.CrossfadeWindow.Duration > c.PrepareWindow.Duration && c.PrepareWindow.Duration > 0 {
		errs = append(errs, errors.New("crossfade_window must not exceed prepare_window"))
	}
	for name, d := range map[string]Duration{
		"fade_duration":      c.FadeDuration,
		"crossfade_duration": c.CrossfadeDuration,
		"restart_threshold":  c.RestartThreshold,
		"tick_interval":      c.TickInterval,
	} {
		if d.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative", name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks SyncConfig for errors.
func (c *SyncConfig) Validate() error {
	var errs []error
	for name, d := range map[string]Duration{
		"play_debounce":      c.PlayDebounce,
		"volume_debounce":    c.VolumeDebounce,
		"shuffle_debounce":   c.ShuffleDebounce,
		"repeat_debounce":    c.RepeatDebounce,
		"heartbeat_interval": c.HeartbeatInterval,
		"device_ttl":         c.DeviceTTL,
		"request_timeout":    c.RequestTimeout,
		"seek_tolerance":     c.SeekTolerance,
	} {
		if d.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative", name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RefreshInterval.Duration < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
