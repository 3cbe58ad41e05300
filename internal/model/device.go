package model

type Capability string

const (
	CapabilityTemperature Capability = "temperature"
	CapabilityHumidity    Capability = "humidity"
	CapabilityActionRelay Capability = "action_relay"
	CapabilityDoorOpen    Capability = "door_open"
	CapabilityMotion      Capability = "motion"
	CapabilityMail        Capability = "mail"
)

const ParamDetectionEnabled = "detection_enabled"

type Device struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Capabilities []Capability   `json:"capabilities"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

func (d Device) Has(c Capability) bool {
	for _, capability := range d.Capabilities {
		if capability == c {
			return true
		}
	}
	return false
}

func (d Device) DetectionEnabled() bool {
	enabled, _ := d.Parameters[ParamDetectionEnabled].(bool)
	return enabled
}

// WithDetectionEnabled returns a copy of d; the receiver's parameter map is
// left untouched so cached devices are never mutated.
func (d Device) WithDetectionEnabled(enabled bool) Device {
	params := make(map[string]any, len(d.Parameters)+1)
	for k, v := range d.Parameters {
		params[k] = v
	}
	params[ParamDetectionEnabled] = enabled

	out := d
	out.Capabilities = append([]Capability(nil), d.Capabilities...)
	out.Parameters = params
	return out
}

func FindByCapability(devices []Device, c Capability) (Device, bool) {
	for _, d := range devices {
		if d.Has(c) {
			return d, true
		}
	}
	return Device{}, false
}

func FilterByCapability(devices []Device, c Capability) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Has(c) {
			out = append(out, d)
		}
	}
	return out
}

func DeviceIDs(devices []Device) []string {
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}
