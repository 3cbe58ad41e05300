package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedFromFloat(t *testing.T) {
	assert.Equal(t, Fixed(1050), FixedFromFloat(10.5))
	assert.Equal(t, Fixed(1850), FixedFromFloat(18.5))
	assert.Equal(t, Fixed(-250), FixedFromFloat(-2.5))
	assert.Equal(t, 21.37, Fixed(2137).Float())
	assert.Equal(t, "9.00", Fixed(900).String())
}

func TestDoorStatusOf(t *testing.T) {
	assert.Equal(t, DoorClosed, DoorStatusOf(0))
	assert.Equal(t, DoorOpen, DoorStatusOf(100))
	assert.Equal(t, DoorWarning, DoorStatusOf(200))
	assert.Equal(t, DoorCritical, DoorStatusOf(300))
	assert.Equal(t, DoorClosed, DoorStatusOf(42))
}

func TestMailEventOf(t *testing.T) {
	assert.Equal(t, MailInboxOpened, MailEventOf(100))
	assert.Equal(t, MailInboxClosed, MailEventOf(-100))
	assert.Equal(t, MailOutboxOpened, MailEventOf(200))
	assert.Equal(t, MailOutboxClosed, MailEventOf(-200))
	assert.Equal(t, MailUnknown, MailEventOf(0))
	assert.Equal(t, MailUnknown, MailEventOf(300))
}

func TestMailStatusOf(t *testing.T) {
	earlier := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	assert.Equal(t, MailNew, MailStatusOf(later, earlier))
	assert.Equal(t, MailEmpty, MailStatusOf(earlier, later))
	assert.Equal(t, MailStatusUnknown, MailStatusOf(later, later))
	assert.Equal(t, MailStatusUnknown, MailStatusOf(time.Time{}, time.Time{}))
	assert.Equal(t, MailNew, MailStatusOf(later, time.Time{}))
	assert.Equal(t, MailEmpty, MailStatusOf(time.Time{}, later))
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyMin.Valid())
	assert.True(t, StrategyAvg.Valid())
	assert.False(t, Strategy("max").Valid())
	assert.False(t, Strategy("").Valid())
}

func TestFindByCapabilityKeepsGatewayOrder(t *testing.T) {
	devices := []Device{
		{ID: "a", Capabilities: []Capability{CapabilityTemperature}},
		{ID: "b", Capabilities: []Capability{CapabilityActionRelay}},
		{ID: "c", Capabilities: []Capability{CapabilityActionRelay, CapabilityTemperature}},
	}

	d, ok := FindByCapability(devices, CapabilityActionRelay)
	assert.True(t, ok)
	assert.Equal(t, "b", d.ID)

	_, ok = FindByCapability(devices, CapabilityMail)
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "c"}, DeviceIDs(FilterByCapability(devices, CapabilityTemperature)))
}

func TestWithDetectionEnabledCopies(t *testing.T) {
	original := Device{
		ID:         "door",
		Parameters: map[string]any{ParamDetectionEnabled: false, "sensitivity": 3.0},
	}

	updated := original.WithDetectionEnabled(true)

	assert.True(t, updated.DetectionEnabled())
	assert.False(t, original.DetectionEnabled())
	assert.Equal(t, 3.0, updated.Parameters["sensitivity"])
}

func TestDetectionEnabledWithoutParameters(t *testing.T) {
	assert.False(t, Device{ID: "x"}.DetectionEnabled())
}
