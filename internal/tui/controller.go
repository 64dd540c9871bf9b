package tui

import (
	"context"
	"time"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/engine"
)

// Controller is the playback session as the UI sees it.
type Controller interface {
	Snapshot() core.Session
	Devices() []core.Device
	LocalDeviceID() string
	History(ctx context.Context, limit int) ([]core.HistoryEntry, error)

	TogglePlay(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	PlayIndex(ctx context.Context, index int) error
	Play(ctx context.Context, req engine.PlayRequest) error
	SetVolume(percent int)
	Seek(position time.Duration)
	ToggleShuffle()
	CycleRepeat()
	SetPrime(deviceID string)
}

// EngineController drives a running engine.
type EngineController struct {
	e *engine.Engine
}

// NewEngineController wraps e.
func NewEngineController(e *engine.Engine) *EngineController {
	return &EngineController{e: e}
}

func (c *EngineController) Snapshot() core.Session { return c.e.Scheduler.Snapshot() }
func (c *EngineController) Devices() []core.Device { return c.e.Registry.Devices() }
func (c *EngineController) LocalDeviceID() string  { return c.e.Device.ID }

func (c *EngineController) History(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	return c.e.History(ctx, limit)
}

func (c *EngineController) TogglePlay(ctx context.Context) error {
	return c.e.Scheduler.TogglePlay(ctx)
}

func (c *EngineController) Next(ctx context.Context) error {
	return c.e.Scheduler.NextSong(ctx, true)
}

func (c *EngineController) Previous(ctx context.Context) error {
	return c.e.Scheduler.PreviousSong(ctx)
}

func (c *EngineController) PlayIndex(ctx context.Context, index int) error {
	return c.e.Scheduler.PlayIndex(ctx, index)
}

func (c *EngineController) Play(ctx context.Context, req engine.PlayRequest) error {
	return c.e.Play(ctx, req)
}

func (c *EngineController) SetVolume(percent int) {
	c.e.Scheduler.SetVolume(core.PercentToVolume(percent))
}

func (c *EngineController) Seek(position time.Duration) { c.e.Seek(position) }
func (c *EngineController) ToggleShuffle()              { c.e.Scheduler.ToggleShuffle() }
func (c *EngineController) CycleRepeat()                { c.e.Scheduler.CycleRepeat() }
func (c *EngineController) SetPrime(deviceID string)    { c.e.SetPrime(deviceID) }
