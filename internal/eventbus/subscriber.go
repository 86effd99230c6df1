package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/nmea2000"
)

// Ingestor accepts raw bus traffic. The pipeline implements it.
type Ingestor interface {
	IngestLine(line string)
	IngestFrame(f nmea2000.Frame)
}

// FrameEnvelope is the wire form of one NMEA 2000 frame on nmea.raw.2000.
// Data is base64 in JSON; Timestamp is Unix nanoseconds, zero meaning
// receive time.
type FrameEnvelope struct {
	PGN       uint32 `json:"pgn"`
	Source    uint8  `json:"source"`
	Priority  uint8  `json:"priority"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Data      []byte `json:"data"`
}

// Frame converts the envelope to the decoder's frame type.
func (e FrameEnvelope) Frame() nmea2000.Frame {
	f := nmea2000.Frame{
		PGN:      e.PGN,
		Source:   e.Source,
		Priority: e.Priority,
		Data:     e.Data,
	}
	if e.Timestamp != 0 {
		f.Timestamp = time.Unix(0, e.Timestamp)
	}
	return f
}

// RawSubscriber feeds NATS raw-bus subjects into an Ingestor. Sentences on
// nmea.raw.0183 are plain text; frames on nmea.raw.2000 are FrameEnvelope
// JSON.
type RawSubscriber struct {
	conn     *nats.Conn
	subs     []*nats.Subscription
	ingestor Ingestor
	logger   zerolog.Logger
}

func NewRawSubscriber(natsURL string, ingestor Ingestor, logger zerolog.Logger) (*RawSubscriber, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect %s: %w", natsURL, err)
	}

	logger = logger.With().Str("component", "eventbus").Logger()
	logger.Info().Str("url", natsURL).Msg("Raw subscriber connected to NATS")

	return &RawSubscriber{conn: conn, ingestor: ingestor, logger: logger}, nil
}

// Start subscribes to both raw subjects. Handlers run on NATS delivery
// goroutines; the ingestor's decode work is safe there.
func (s *RawSubscriber) Start() error {
	sub0183, err := s.conn.Subscribe(SubjectRaw0183, s.handleRaw0183)
	if err != nil {
		return fmt.Errorf("eventbus: subscribe %s: %w", SubjectRaw0183, err)
	}
	s.subs = append(s.subs, sub0183)

	sub2000, err := s.conn.Subscribe(SubjectRaw2000, s.handleRaw2000)
	if err != nil {
		return fmt.Errorf("eventbus: subscribe %s: %w", SubjectRaw2000, err)
	}
	s.subs = append(s.subs, sub2000)

	s.logger.Info().Str("sentences", SubjectRaw0183).Str("frames", SubjectRaw2000).Msg("Listening for raw bus traffic")
	return nil
}

func (s *RawSubscriber) handleRaw0183(msg *nats.Msg) {
	s.ingestor.IngestLine(string(msg.Data))
}

func (s *RawSubscriber) handleRaw2000(msg *nats.Msg) {
	var env FrameEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.Debug().Err(err).Msg("Dropped undecodable frame envelope")
		return
	}
	s.ingestor.IngestFrame(env.Frame())
}

func (s *RawSubscriber) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
		s.logger.Info().Msg("Raw subscriber disconnected from NATS")
	}
}

func (s *RawSubscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}
