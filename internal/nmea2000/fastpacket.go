package nmea2000

import (
	"sync"
	"time"
)

// Fast-packet framing: byte 0 of every frame carries a 3-bit sequence
// counter in the high bits and a 5-bit frame index in the low bits. The
// first frame (index 0) additionally carries the total payload length in
// byte 1 and six payload bytes; subsequent frames carry seven payload bytes
// each. 6 + 31*7 caps the payload at 223 bytes.
const (
	MaxFastPacketSize    = 223
	frameIndexMask       = 0x1F
	sequenceCounterShift = 5
)

type assemblyKey struct {
	pgn    uint32
	source uint8
}

type assembly struct {
	sequence  uint8
	nextIndex uint8
	total     int
	payload   []byte
	updated   time.Time
}

// Reassembler accumulates fast-packet frames keyed by (PGN, source address)
// and returns the completed payload once all frames have arrived in order.
// It is safe for concurrent use.
type Reassembler struct {
	mu      sync.Mutex
	pending map[assemblyKey]*assembly
	timeout time.Duration
}

// NewReassembler returns a reassembler that abandons partial assemblies not
// touched for the given timeout. SweepStale enforces the timeout; callers
// run it on their housekeeping tick.
func NewReassembler(timeout time.Duration) *Reassembler {
	return &Reassembler{
		pending: make(map[assemblyKey]*assembly),
		timeout: timeout,
	}
}

// Push feeds one frame. It returns the full payload when the frame completes
// an assembly, nil while the assembly is still in progress, and a
// ReassemblyError when the frame forces an abort. A frame with index zero
// always starts a fresh assembly, replacing any partial one for its key.
func (r *Reassembler) Push(f Frame) ([]byte, error) {
	if len(f.Data) < 2 {
		return nil, &ReassemblyError{PGN: f.PGN, Source: f.Source, Reason: ReasonShortFrame, Detail: "fast-packet frame shorter than 2 bytes"}
	}
	seq := f.Data[0] >> sequenceCounterShift
	index := f.Data[0] & frameIndexMask
	key := assemblyKey{pgn: f.PGN, source: f.Source}

	r.mu.Lock()
	defer r.mu.Unlock()

	if index == 0 {
		total := int(f.Data[1])
		if total == 0 || total > MaxFastPacketSize {
			return nil, &ReassemblyError{PGN: f.PGN, Source: f.Source, Reason: ReasonBadLength, Detail: "declared payload length out of range"}
		}
		a := &assembly{
			sequence:  seq,
			nextIndex: 1,
			total:     total,
			payload:   append([]byte{}, f.Data[2:]...),
			updated:   r.now(f.Timestamp),
		}
		return r.finish(key, a)
	}

	a, ok := r.pending[key]
	if !ok {
		return nil, &ReassemblyError{PGN: f.PGN, Source: f.Source, Reason: ReasonOrphanFrame, Detail: "continuation frame without a start frame"}
	}
	if seq != a.sequence || index != a.nextIndex {
		delete(r.pending, key)
		return nil, &ReassemblyError{PGN: f.PGN, Source: f.Source, Reason: ReasonOutOfOrder, Detail: "sequence or frame index mismatch"}
	}

	a.payload = append(a.payload, f.Data[1:]...)
	a.nextIndex++
	a.updated = r.now(f.Timestamp)
	return r.finish(key, a)
}

// finish stores or completes the assembly under the lock.
func (r *Reassembler) finish(key assemblyKey, a *assembly) ([]byte, error) {
	if len(a.payload) >= a.total {
		delete(r.pending, key)
		return a.payload[:a.total], nil
	}
	r.pending[key] = a
	return nil, nil
}

// SweepStale drops assemblies idle past the timeout and returns how many
// were dropped.
func (r *Reassembler) SweepStale(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for key, a := range r.pending {
		if now.Sub(a.updated) > r.timeout {
			delete(r.pending, key)
			dropped++
		}
	}
	return dropped
}

// Pending returns the number of in-progress assemblies.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Reassembler) now(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
