// Package pipeline wires the decoders, mapper, cache, alarm evaluator, and
// detection service behind a single apply goroutine. Ingest methods are safe
// to call from any goroutine: they decode and map on the caller's stack and
// enqueue the resulting updates, so the cache only ever sees one writer.
// Periodic work (alarm sweeps, history pruning, detection scans) runs on
// tickers owned by the same goroutine and pauses while nobody is subscribed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/detection"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/mapper"
	"github.com/pliefoog/helmwatch/internal/metrics"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/nmea0183"
	"github.com/pliefoog/helmwatch/internal/nmea2000"
	"github.com/pliefoog/helmwatch/internal/sensor"
	"github.com/pliefoog/helmwatch/internal/units"
)

// Config controls queue sizing and the periodic schedules.
type Config struct {
	AlarmInterval     time.Duration
	PruneInterval     time.Duration
	ScanInterval      time.Duration
	ReassemblyTimeout time.Duration
	QueueSize         int
	History           history.Config
}

// DefaultConfig returns the schedule used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AlarmInterval:     time.Second,
		PruneInterval:     10 * time.Second,
		ScanInterval:      2 * time.Second,
		ReassemblyTimeout: 750 * time.Millisecond,
		QueueSize:         512,
		History:           history.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AlarmInterval <= 0 {
		c.AlarmInterval = d.AlarmInterval
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = d.PruneInterval
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = d.ScanInterval
	}
	if c.ReassemblyTimeout <= 0 {
		c.ReassemblyTimeout = d.ReassemblyTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.History.RecentCap <= 0 {
		c.History = d.History
	}
	return c
}

// Pipeline owns the full ingest-to-event flow for one vessel bus.
type Pipeline struct {
	cfg      Config
	registry *units.Registry
	cache    *sensor.Cache
	mapper   *mapper.Mapper
	reasm    *nmea2000.Reassembler
	eval     *alarm.Evaluator
	detector *detection.Service
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	updates  chan models.SensorUpdate
	commands chan func()

	mu          sync.Mutex
	subscribers map[int]*Subscription
	nextSubID   int
	running     bool
	stopped     bool

	stop chan struct{}
	done chan struct{}
}

// New assembles a pipeline. A nil registrations slice selects the built-in
// widget registrations; metrics must be non-nil.
func New(cfg Config, registrations []detection.Registration, met *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	reg := units.NewRegistry()
	cache := sensor.NewCache(reg, cfg.History, alarm.Defaults(), logger)
	p := &Pipeline{
		cfg:         cfg,
		registry:    reg,
		cache:       cache,
		mapper:      mapper.New(),
		reasm:       nmea2000.NewReassembler(cfg.ReassemblyTimeout),
		eval:        alarm.NewEvaluator(cache, logger),
		detector:    detection.NewService(cache, registrations, logger),
		metrics:     met,
		logger:      logger.With().Str("component", "pipeline").Logger(),
		updates:     make(chan models.SensorUpdate, cfg.QueueSize),
		commands:    make(chan func(), 16),
		subscribers: make(map[int]*Subscription),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	cache.OnSchemaMismatch = func(t models.SensorType, field string) {
		met.RecordSchemaMismatch(string(t))
		p.logger.Debug().Str("sensor_type", string(t)).Str("field", field).Msg("Dropped unknown field")
	}
	return p
}

// Cache exposes the sensor cache for read-side consumers.
func (p *Pipeline) Cache() *sensor.Cache { return p.cache }

// Units exposes the unit registry. Writes must go through SetUnit.
func (p *Pipeline) Units() *units.Registry { return p.registry }

// Detector exposes the detection service for query handlers.
func (p *Pipeline) Detector() *detection.Service { return p.detector }

// Start launches the apply goroutine. Starting twice, or after Stop, is a
// no-op; a pipeline is not restartable.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info().
		Dur("alarm_interval", p.cfg.AlarmInterval).
		Dur("prune_interval", p.cfg.PruneInterval).
		Dur("scan_interval", p.cfg.ScanInterval).
		Msg("Pipeline started")
	go p.run(ctx)
}

// Stop shuts the apply goroutine down and waits for it to exit. Updates
// still queued are dropped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
	p.logger.Info().Msg("Pipeline stopped")
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	alarmTick := time.NewTicker(p.cfg.AlarmInterval)
	defer alarmTick.Stop()
	pruneTick := time.NewTicker(p.cfg.PruneInterval)
	defer pruneTick.Stop()
	scanTick := time.NewTicker(p.cfg.ScanInterval)
	defer scanTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case u := <-p.updates:
			p.apply(u)
		case fn := <-p.commands:
			fn()
		case <-alarmTick.C:
			if p.hasConsumers() {
				p.sweepAlarms(time.Now())
			}
		case <-pruneTick.C:
			if p.hasConsumers() {
				p.housekeep(time.Now())
			}
		case <-scanTick.C:
			if p.hasConsumers() {
				p.scanInstances(time.Now())
			}
		}
	}
}

// IngestLine feeds one NMEA 0183 sentence into the pipeline. Malformed or
// unsupported input is counted and logged at debug; it is never an error.
func (p *Pipeline) IngestLine(line string) {
	p.metrics.RecordFrame(metrics.ProtocolNMEA0183)
	s, err := nmea0183.Parse(line)
	if err != nil {
		p.metrics.RecordDecodeFailure(metrics.ProtocolNMEA0183, lineReason(err))
		p.logger.Debug().Err(err).Str("line", line).Msg("Dropped sentence")
		return
	}
	msg, err := nmea0183.Decode(s)
	if err != nil {
		p.metrics.RecordDecodeFailure(metrics.ProtocolNMEA0183, lineReason(err))
		p.logger.Debug().Err(err).Str("type", s.Type).Msg("Dropped sentence")
		return
	}
	if msg == nil {
		p.metrics.RecordDecodeFailure(metrics.ProtocolNMEA0183, "unsupported_type")
		return
	}
	p.enqueue(p.mapper.MapSentence(msg, time.Now()))
}

// IngestFrame feeds one NMEA 2000 frame into the pipeline. Fast-packet PGNs
// pass through the reassembler; only completed payloads are decoded.
func (p *Pipeline) IngestFrame(f nmea2000.Frame) {
	p.metrics.RecordFrame(metrics.ProtocolNMEA2000)
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	data := f.Data
	if nmea2000.IsFastPacket(f.PGN) {
		payload, err := p.reasm.Push(f)
		if err != nil {
			p.metrics.RecordReassemblyDrop(reassemblyReason(err))
			p.logger.Debug().Err(err).Uint32("pgn", f.PGN).Uint8("source", f.Source).Msg("Dropped frame")
			return
		}
		if payload == nil {
			return
		}
		data = payload
	}

	msg, err := nmea2000.Decode(f.PGN, data)
	if err != nil {
		p.metrics.RecordDecodeFailure(metrics.ProtocolNMEA2000, frameReason(err))
		p.logger.Debug().Err(err).Uint32("pgn", f.PGN).Msg("Dropped frame")
		return
	}
	if msg == nil {
		p.metrics.RecordDecodeFailure(metrics.ProtocolNMEA2000, "unsupported_pgn")
		return
	}
	p.enqueue(p.mapper.MapPGN(f.Source, msg, ts))
}

func (p *Pipeline) enqueue(updates []models.SensorUpdate) {
	for _, u := range updates {
		select {
		case p.updates <- u:
		case <-p.done:
			return
		}
	}
}

func (p *Pipeline) apply(u models.SensorUpdate) {
	start := time.Now()
	p.cache.Apply(u)
	p.metrics.ObserveApply(time.Since(start).Seconds())
	p.metrics.RecordUpdate(string(u.Type))
}

// sweepAlarms runs one evaluator pass and fans out the transitions.
func (p *Pipeline) sweepAlarms(now time.Time) {
	for _, ev := range p.eval.Sweep(now) {
		p.metrics.RecordAlarmTransition(string(ev.Current))
		p.emit(ev)
	}
}

// housekeep prunes history past its horizon and abandons stale half-built
// fast packets.
func (p *Pipeline) housekeep(now time.Time) {
	p.cache.Prune(now)
	if dropped := p.reasm.SweepStale(now); dropped > 0 {
		p.metrics.ReassemblyDrops.WithLabelValues(string(nmea2000.ReasonTimeout)).Add(float64(dropped))
	}
}

// scanInstances reconciles the detected set and fans out appear/lost events.
func (p *Pipeline) scanInstances(now time.Time) {
	for _, ev := range p.detector.Scan(now) {
		p.emit(ev)
	}
	p.metrics.SetInstancesDetected(len(p.detector.Detected()))
}

func (p *Pipeline) emit(ev models.Event) {
	p.metrics.RecordEvent(ev.EventKind())
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subscribers {
		select {
		case sub.events <- ev:
		default:
			// Slow consumer: drop rather than stall the apply loop.
		}
	}
}

// SetUnit switches the active display unit for a category and re-enriches
// every affected metric, serialized onto the apply goroutine.
func (p *Pipeline) SetUnit(cat units.Category, unitName string) error {
	return p.command(func() error {
		if err := p.registry.SetActive(cat, unitName); err != nil {
			return err
		}
		p.cache.ReEnrich(cat)
		return nil
	})
}

// SetThresholds replaces the thresholds for one metric on one instance.
func (p *Pipeline) SetThresholds(t models.SensorType, instance int, field string, th alarm.Thresholds) error {
	return p.command(func() error {
		return p.cache.SetThresholds(t, instance, field, th)
	})
}

// SetDefaultThresholds replaces the type-wide default for a field and pushes
// it to instances still on the previous default.
func (p *Pipeline) SetDefaultThresholds(t models.SensorType, field string, th alarm.Thresholds) error {
	return p.command(func() error {
		return p.cache.SetDefaultThresholds(t, field, th)
	})
}

// command runs fn on the apply goroutine and waits for its result. Outside
// the running window (before Start, after Stop) there is no writer to
// serialize against and fn runs inline.
func (p *Pipeline) command(fn func() error) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return fn()
	}

	errCh := make(chan error, 1)
	select {
	case p.commands <- func() { errCh <- fn() }:
	case <-p.done:
		return fmt.Errorf("pipeline: stopped")
	}
	select {
	case err := <-errCh:
		return err
	case <-p.done:
		return fmt.Errorf("pipeline: stopped")
	}
}

// Subscribe registers an event consumer. The periodic schedules only run
// while at least one subscription is open.
func (p *Pipeline) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	sub := &Subscription{id: id, events: make(chan models.Event, 64), p: p}
	p.subscribers[id] = sub
	return sub
}

func (p *Pipeline) hasConsumers() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers) > 0
}

// Stats reports instantaneous pipeline load for the health endpoint.
type Stats struct {
	QueueDepth        int `json:"queue_depth"`
	Subscribers       int `json:"subscribers"`
	PendingAssemblies int `json:"pending_assemblies"`
	Instances         int `json:"instances"`
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	subs := len(p.subscribers)
	p.mu.Unlock()
	return Stats{
		QueueDepth:        len(p.updates),
		Subscribers:       subs,
		PendingAssemblies: p.reasm.Pending(),
		Instances:         len(p.cache.Instances()),
	}
}

// Subscription is one consumer's view of the event stream. Events are
// best-effort: a consumer that stops draining loses events, not the bus.
type Subscription struct {
	id     int
	events chan models.Event
	p      *Pipeline
	once   sync.Once
}

// Events returns the channel the pipeline fans events out on. It is closed
// by Close.
func (s *Subscription) Events() <-chan models.Event { return s.events }

// Close unregisters the consumer. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.p.mu.Lock()
		delete(s.p.subscribers, s.id)
		close(s.events)
		s.p.mu.Unlock()
	})
}

func lineReason(err error) string {
	var de *nmea0183.DecodeError
	if errors.As(err, &de) {
		return string(de.Reason)
	}
	return "unknown"
}

func frameReason(err error) string {
	var de *nmea2000.DecodeError
	if errors.As(err, &de) {
		return string(de.Reason)
	}
	return "unknown"
}

func reassemblyReason(err error) string {
	var re *nmea2000.ReassemblyError
	if errors.As(err, &re) {
		return string(re.Reason)
	}
	return "unknown"
}
