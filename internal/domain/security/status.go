package security

import (
	"errors"
	"fmt"
	"strings"
)

// ArmingStatus is the arming mode selected by the user.
type ArmingStatus int

const (
	// Disarmed means sensor activity never escalates the alarm.
	Disarmed ArmingStatus = iota
	// ArmedHome means the system is armed while people are at home.
	ArmedHome
	// ArmedAway means the system is armed while the house is empty.
	ArmedAway
)

// AlarmStatus is the escalation level derived from sensor and camera events.
type AlarmStatus int

const (
	// NoAlarm means nothing suspicious is going on.
	NoAlarm AlarmStatus = iota
	// PendingAlarm means one event was seen and the next one fires the alarm.
	PendingAlarm
	// Alarm means the alarm is triggered.
	Alarm
)

var (
	// ErrUnknownArmingStatus is returned when arming status text cannot be parsed.
	ErrUnknownArmingStatus = errors.New("unknown arming status")
	// ErrUnknownAlarmStatus is returned when alarm status text cannot be parsed.
	ErrUnknownAlarmStatus = errors.New("unknown alarm status")
)

//nolint:gochecknoglobals // Lookup tables for enum text forms.
var (
	armingStatusNames = map[ArmingStatus]string{
		Disarmed:  "DISARMED",
		ArmedHome: "ARMED_HOME",
		ArmedAway: "ARMED_AWAY",
	}
	alarmStatusNames = map[AlarmStatus]string{
		NoAlarm:      "NO_ALARM",
		PendingAlarm: "PENDING_ALARM",
		Alarm:        "ALARM",
	}
)

// ArmingStatuses lists every arming status.
func ArmingStatuses() []ArmingStatus {
	return []ArmingStatus{Disarmed, ArmedHome, ArmedAway}
}

// AlarmStatuses lists every alarm status.
func AlarmStatuses() []AlarmStatus {
	return []AlarmStatus{NoAlarm, PendingAlarm, Alarm}
}

// IsArmed reports whether s is one of the armed modes.
func (s ArmingStatus) IsArmed() bool {
	return s == ArmedHome || s == ArmedAway
}

func (s ArmingStatus) String() string {
	if name, ok := armingStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ArmingStatus(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ArmingStatus) MarshalText() ([]byte, error) {
	if _, ok := armingStatusNames[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownArmingStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ArmingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseArmingStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseArmingStatus converts text such as "armed_home" or "ARMED-HOME" into an ArmingStatus.
func ParseArmingStatus(s string) (ArmingStatus, error) {
	normalized := normalize(s)
	for status, name := range armingStatusNames {
		if name == normalized {
			return status, nil
		}
	}

	return Disarmed, fmt.Errorf("%w: %q", ErrUnknownArmingStatus, s)
}

func (s AlarmStatus) String() string {
	if name, ok := alarmStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("AlarmStatus(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s AlarmStatus) MarshalText() ([]byte, error) {
	if _, ok := alarmStatusNames[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlarmStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AlarmStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAlarmStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseAlarmStatus converts text such as "pending_alarm" into an AlarmStatus.
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	normalized := normalize(s)
	for status, name := range alarmStatusNames {
		if name == normalized {
			return status, nil
		}
	}

	return NoAlarm, fmt.Errorf("%w: %q", ErrUnknownAlarmStatus, s)
}

// normalize upper-cases s and accepts dashes in place of underscores.
func normalize(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
}
