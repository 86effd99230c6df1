package nmea2000

import "fmt"

// Reason classifies frame and reassembly failures. Reasons are stable
// snake_case strings used as metric labels.
type Reason string

const (
	ReasonShortFrame  Reason = "short_frame"
	ReasonBadLength   Reason = "bad_length"
	ReasonOrphanFrame Reason = "orphan_frame"
	ReasonOutOfOrder  Reason = "out_of_order"
	ReasonTimeout     Reason = "timeout"
)

// DecodeError is a recoverable per-frame decode failure.
type DecodeError struct {
	PGN    uint32
	Reason Reason
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nmea2000: pgn %d: %s: %s", e.PGN, e.Reason, e.Detail)
}

// ReassemblyError reports an aborted fast-packet assembly. The partial
// payload is discarded; the next frame with index zero starts over.
type ReassemblyError struct {
	PGN    uint32
	Source uint8
	Reason Reason
	Detail string
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("nmea2000: reassembly pgn %d src %d: %s: %s", e.PGN, e.Source, e.Reason, e.Detail)
}
