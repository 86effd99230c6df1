// Package nmea2000 decodes NMEA 2000 frames into typed messages with SI
// field values, including fast-packet reassembly for PGNs whose payloads
// span multiple CAN frames.
package nmea2000

import "time"

// Frame is a single CAN frame as delivered by a gateway: up to 8 data bytes
// plus the PGN, source address and priority extracted from the 29-bit ID.
type Frame struct {
	PGN       uint32
	Source    uint8
	Priority  uint8
	Timestamp time.Time
	Data      []byte
}

// fastPGNs lists the supported PGNs whose payloads exceed one frame and
// arrive via the fast-packet protocol.
var fastPGNs = map[uint32]bool{
	PGNGNSSPosition:        true,
	PGNEngineDynamic:       true,
	PGNHeadingTrackControl: true,
	PGNNavigationData:      true,
	PGNDCStatus:            true,
}

// IsFastPacket reports whether the PGN's payload arrives as a fast-packet
// sequence and needs reassembly before decoding.
func IsFastPacket(pgn uint32) bool {
	return fastPGNs[pgn]
}
