package nmea0183

import "fmt"

// Reason classifies why a sentence was rejected. Reasons are stable strings
// used as metric labels, so they stay short and snake_case.
type Reason string

const (
	ReasonBadFraming  Reason = "bad_framing"
	ReasonBadChecksum Reason = "bad_checksum"
	ReasonMalformed   Reason = "malformed_field"
	ReasonOutOfRange  Reason = "out_of_range"
)

// DecodeError is a recoverable per-sentence failure. The pipeline counts it
// and drops the sentence; it never aborts the stream.
type DecodeError struct {
	Reason Reason
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nmea0183: %s: %s", e.Reason, e.Detail)
}

func errBadFraming(detail string) error {
	return &DecodeError{Reason: ReasonBadFraming, Detail: detail}
}

func errBadChecksum(want, got string) error {
	return &DecodeError{Reason: ReasonBadChecksum, Detail: fmt.Sprintf("expected %s, got %s", want, got)}
}

func errMalformed(format string, args ...interface{}) error {
	return &DecodeError{Reason: ReasonMalformed, Detail: fmt.Sprintf(format, args...)}
}
