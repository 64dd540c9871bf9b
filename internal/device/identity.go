// Package device assigns this process a stable device identity, advertises
// it to the session, tracks the other devices in the session and decides
// whether this device is the one allowed to emit sound.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tessro/tandem/internal/core"
)

const (
	// MetaKeyDeviceID is the metadata key holding the persisted identifier.
	MetaKeyDeviceID = "device_id"

	idLength = 6

	// MobileMaxWidth is the widest viewport still classified as mobile.
	MobileMaxWidth = 768

	desktopName = "Desktop"
)

var mobileUA = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

// MetaStore is the persistence the identity needs.
type MetaStore interface {
	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// NewID returns a random six character uppercase base36 identifier.
func NewID() string {
	u := uuid.New()
	v := binary.BigEndian.Uint64(u[:8]) % pow36(idLength)
	id := strings.ToUpper(strconv.FormatUint(v, 36))
	if len(id) < idLength {
		id = strings.Repeat("0", idLength-len(id)) + id
	}
	return id
}

func pow36(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 36
	}
	return p
}

// LoadOrCreateID returns the persisted identifier, generating and storing
// one when none exists.
func LoadOrCreateID(ctx context.Context, store MetaStore) (string, error) {
	id, ok, err := store.Meta(ctx, MetaKeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	id = NewID()
	if err := store.SetMeta(ctx, MetaKeyDeviceID, id); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// Signals are the environment hints used to name and classify a device.
type Signals struct {
	// Name overrides the derived display name when set.
	Name          string
	UserAgent     string
	ViewportWidth int
}

// Classify returns MOBILE for mobile user agents or narrow viewports.
func Classify(userAgent string, viewportWidth int) core.DeviceClass {
	if mobileUA.MatchString(userAgent) || (viewportWidth > 0 && viewportWidth <= MobileMaxWidth) {
		return core.DeviceMobile
	}
	return core.DeviceDesktop
}

// DisplayName derives a human label from the user agent.
func DisplayName(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "iPhone"):
		return "iPhone"
	case strings.Contains(userAgent, "Android"):
		return "Android"
	default:
		return desktopName
	}
}

// Describe builds this device's record. It is computed once per process.
func Describe(id string, s Signals) core.Device {
	name := s.Name
	if name == "" {
		name = DisplayName(s.UserAgent)
	}
	return core.Device{
		ID:    id,
		Name:  name,
		Class: Classify(s.UserAgent, s.ViewportWidth),
	}
}
