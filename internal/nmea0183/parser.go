// Package nmea0183 parses and encodes NMEA 0183 sentences and decodes the
// subset of sentence types the telemetry pipeline understands into typed
// structs with SI field values.
package nmea0183

import (
	"fmt"
	"strings"
)

// Sentence is a structurally valid NMEA 0183 sentence. Talker is the
// two-character talker ID ("SD", "GP", ...), Type the three-character
// sentence type ("DBT", "RMC", ...). Proprietary sentences carry Talker "P"
// and the remainder of the address field as Type.
type Sentence struct {
	Talker   string
	Type     string
	Fields   []string
	Checksum string
}

// Parse validates framing and checksum and splits the sentence into its
// address and data fields. It does not interpret field contents; use Decode
// for that.
func Parse(line string) (Sentence, error) {
	raw := strings.TrimSpace(line)
	if len(raw) < 9 {
		return Sentence{}, errBadFraming("sentence too short")
	}
	if raw[0] != '$' && raw[0] != '!' {
		return Sentence{}, errBadFraming("missing leading delimiter")
	}

	star := strings.LastIndexByte(raw, '*')
	if star < 0 || star+3 != len(raw) {
		return Sentence{}, errBadFraming("missing or misplaced checksum delimiter")
	}

	body := raw[1:star]
	got := raw[star+1:]
	want := fmt.Sprintf("%02X", checksum(body))
	if !strings.EqualFold(want, got) {
		return Sentence{}, errBadChecksum(want, got)
	}

	parts := strings.Split(body, ",")
	addr := parts[0]
	if len(addr) < 3 {
		return Sentence{}, errBadFraming("address field too short")
	}

	s := Sentence{Fields: parts[1:], Checksum: strings.ToUpper(got)}
	if addr[0] == 'P' {
		s.Talker = "P"
		s.Type = addr[1:]
	} else if len(addr) >= 5 {
		s.Talker = addr[:2]
		s.Type = addr[2:]
	} else {
		return Sentence{}, errBadFraming("address field too short")
	}
	return s, nil
}

// Encode renders the sentence back to wire form, computing the checksum from
// the current talker, type and fields. Parse(s.Encode()) reproduces s for any
// structurally valid sentence.
func (s Sentence) Encode() string {
	addr := s.Talker + s.Type
	if s.Talker == "P" {
		addr = "P" + s.Type
	}
	body := addr
	if len(s.Fields) > 0 {
		body += "," + strings.Join(s.Fields, ",")
	}
	return fmt.Sprintf("$%s*%02X", body, checksum(body))
}

// checksum XORs every byte between the leading delimiter and the asterisk.
func checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// Field returns the i-th data field, or "" when the sentence is shorter.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}
