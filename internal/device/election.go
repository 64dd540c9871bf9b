package device

import "sync"

// Election tracks which device holds prime status. The answer is read at the
// moment an audible effect is applied, so callers must not cache it.
type Election struct {
	localID string

	mu      sync.RWMutex
	primeID string
}

// NewElection returns an election for the local device id.
func NewElection(localID string) *Election {
	return &Election{localID: localID}
}

// LocalID returns this device's identifier.
func (e *Election) LocalID() string {
	return e.localID
}

// PrimeDeviceID returns the session's current prime device id.
func (e *Election) PrimeDeviceID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primeID
}

// SetPrimeDeviceID records the prime device and reports whether this
// device's prime status changed as a result.
func (e *Election) SetPrimeDeviceID(id string) (changed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	was := e.primeID == e.localID
	e.primeID = id
	return was != (id == e.localID)
}

// IsPrime reports whether this device may emit sound.
func (e *Election) IsPrime() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.localID != "" && e.primeID == e.localID
}
