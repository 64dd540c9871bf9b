// Package audio provides the two output handles the playback scheduler
// alternates between.
package audio

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Handle is one audio output. Load never blocks: the source is fetched in the
// background and a Play issued before it is ready takes effect once it is.
type Handle interface {
	Load(url string) error
	Source() string
	Play() error
	Pause()
	Playing() bool
	SetVolume(v float64)
	Volume() float64
	Position() time.Duration
	Seek(d time.Duration) error
	// Duration is zero until the source has been decoded.
	Duration() time.Duration
	// Ended reports whether the loaded source played to its end.
	Ended() bool
	// Clear stops playback and unloads the source.
	Clear()
}

// Options configures handles built by NewOutput.
type Options struct {
	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// NewOutputPair returns a pair of output handles. Builds without a native
// audio backend get silent handles that keep time.
func NewOutputPair(opts Options) *Pair {
	opts = opts.withDefaults()
	return NewPair(NewOutput(opts), NewOutput(opts))
}
