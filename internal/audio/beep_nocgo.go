//go:build !((linux && cgo) || windows || darwin)

package audio

// Available indicates whether this build can emit sound.
// Audio requires cgo for native sound libraries on this platform.
const Available = false

// NewOutput returns a silent handle that keeps time.
func NewOutput(opts Options) Handle {
	opts = opts.withDefaults()
	return NewSilentHandle(opts.Clock)
}
