package model

import "time"

type DataType string

const (
	DataTypeTemperature DataType = "temperature"
	DataTypeHumidity    DataType = "humidity"
	DataTypeDoorOpen    DataType = "door_open"
	DataTypeMotion      DataType = "motion"
	DataTypeMail        DataType = "mail"
	DataTypeBattery     DataType = "battery"
)

type Sample struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"deviceId"`
	DataType  DataType  `json:"dataType"`
	Value     Fixed     `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type DoorStatus string

const (
	DoorClosed   DoorStatus = "closed"
	DoorOpen     DoorStatus = "open"
	DoorWarning  DoorStatus = "warning"
	DoorCritical DoorStatus = "critical"
)

// DoorStatusOf decodes a door_open reading. Anything unrecognised is
// reported as closed, matching how the door worker encodes its idle state.
func DoorStatusOf(value Fixed) DoorStatus {
	switch value {
	case 100:
		return DoorOpen
	case 200:
		return DoorWarning
	case 300:
		return DoorCritical
	default:
		return DoorClosed
	}
}

type MailEvent string

const (
	MailInboxOpened  MailEvent = "inbox_opened"
	MailInboxClosed  MailEvent = "inbox_closed"
	MailOutboxOpened MailEvent = "outbox_opened"
	MailOutboxClosed MailEvent = "outbox_closed"
	MailUnknown      MailEvent = "unknown"
)

// Mail readings carry the flap and the direction; closing is the negated
// opening value.
const (
	MailInboxValue        Fixed = 100
	MailInboxClosedValue  Fixed = -100
	MailOutboxValue       Fixed = 200
	MailOutboxClosedValue Fixed = -200
)

func MailEventOf(value Fixed) MailEvent {
	switch value {
	case MailInboxValue:
		return MailInboxOpened
	case MailInboxClosedValue:
		return MailInboxClosed
	case MailOutboxValue:
		return MailOutboxOpened
	case MailOutboxClosedValue:
		return MailOutboxClosed
	default:
		return MailUnknown
	}
}

type MailStatus string

const (
	MailEmpty         MailStatus = "empty"
	MailNew           MailStatus = "new_mail"
	MailStatusUnknown MailStatus = "unknown"
)

// MailStatusOf compares the last inbox and outbox openings; a zero time means
// the flap was never seen. Equal times, including two missing ones, are
// ambiguous.
func MailStatusOf(lastInbox, lastOutbox time.Time) MailStatus {
	switch lastInbox.Compare(lastOutbox) {
	case 1:
		return MailNew
	case -1:
		return MailEmpty
	default:
		return MailStatusUnknown
	}
}
