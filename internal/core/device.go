package core

import "time"

// DeviceClass indicates the form factor of a device.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "DESKTOP"
	DeviceMobile  DeviceClass = "MOBILE"
)

// Device is a member of the session's device registry.
type Device struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Class    DeviceClass `json:"class"`
	LastSeen time.Time   `json:"last_seen"`
}
