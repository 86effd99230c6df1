package models

// AlarmState is the evaluated condition of one metric field.
type AlarmState string

const (
	AlarmNormal   AlarmState = "normal"
	AlarmWarning  AlarmState = "warning"
	AlarmCritical AlarmState = "critical"
	AlarmStale    AlarmState = "stale"
)

// Rank orders states by urgency so transitions can be compared. Stale ranks
// above critical because it overrides any value-based severity.
func (s AlarmState) Rank() int {
	switch s {
	case AlarmNormal:
		return 0
	case AlarmWarning:
		return 1
	case AlarmCritical:
		return 2
	case AlarmStale:
		return 3
	}
	return -1
}

func (s AlarmState) IsAlarming() bool {
	return s == AlarmWarning || s == AlarmCritical
}
