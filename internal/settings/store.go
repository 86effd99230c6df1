// Package settings persists operator preferences, display units and alarm
// thresholds, in redis and applies runtime changes arriving over NATS.
// Persistence is optional: a vessel without redis runs on defaults.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

const (
	unitsKey        = "helmwatch:units"
	thresholdPrefix = "helmwatch:thresholds:"
)

// Store reads and writes preferences under the helmwatch: key prefix. Units
// live in one hash keyed by category; thresholds in one JSON value per
// (sensor type, field).
type Store struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewStore(addr, password string, db int, logger zerolog.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("settings: connect redis %s: %w", addr, err)
	}

	logger = logger.With().Str("component", "settings").Logger()
	logger.Info().Str("addr", addr).Msg("Connected to redis")

	return &Store{rdb: rdb, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// ThresholdOverride is one persisted type-wide threshold set.
type ThresholdOverride struct {
	Sensor     models.SensorType
	Field      string
	Thresholds alarm.Thresholds
}

// Preferences is everything the store holds, loaded in one pass at startup.
type Preferences struct {
	Units      map[units.Category]string
	Thresholds []ThresholdOverride
}

// Load reads all persisted preferences. Corrupt entries are logged and
// skipped so one bad key cannot block startup.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	prefs := Preferences{Units: make(map[units.Category]string)}

	unitPrefs, err := s.rdb.HGetAll(ctx, unitsKey).Result()
	if err != nil {
		return prefs, fmt.Errorf("settings: load units: %w", err)
	}
	for cat, unit := range unitPrefs {
		prefs.Units[units.Category(cat)] = unit
	}

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, thresholdPrefix+"*", 100).Result()
		if err != nil {
			return prefs, fmt.Errorf("settings: scan thresholds: %w", err)
		}
		for _, key := range keys {
			sensor, field, ok := parseThresholdKey(key)
			if !ok {
				s.logger.Warn().Str("key", key).Msg("Skipping malformed threshold key")
				continue
			}
			raw, err := s.rdb.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return prefs, fmt.Errorf("settings: load %s: %w", key, err)
			}
			var th alarm.Thresholds
			if err := json.Unmarshal([]byte(raw), &th); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("Skipping undecodable thresholds")
				continue
			}
			prefs.Thresholds = append(prefs.Thresholds, ThresholdOverride{
				Sensor:     sensor,
				Field:      field,
				Thresholds: th,
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Info().
		Int("units", len(prefs.Units)).
		Int("thresholds", len(prefs.Thresholds)).
		Msg("Loaded persisted preferences")
	return prefs, nil
}

// SaveUnit persists the active unit for one category.
func (s *Store) SaveUnit(ctx context.Context, cat units.Category, unit string) error {
	if err := s.rdb.HSet(ctx, unitsKey, string(cat), unit).Err(); err != nil {
		return fmt.Errorf("settings: save unit %s: %w", cat, err)
	}
	return nil
}

// SaveThresholds persists the type-wide thresholds for one field.
func (s *Store) SaveThresholds(ctx context.Context, t models.SensorType, field string, th alarm.Thresholds) error {
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("settings: marshal thresholds: %w", err)
	}
	if err := s.rdb.Set(ctx, thresholdKey(t, field), data, 0).Err(); err != nil {
		return fmt.Errorf("settings: save thresholds %s.%s: %w", t, field, err)
	}
	return nil
}

func thresholdKey(t models.SensorType, field string) string {
	return fmt.Sprintf("%s%s:%s", thresholdPrefix, t, field)
}

func parseThresholdKey(key string) (models.SensorType, string, bool) {
	rest, ok := strings.CutPrefix(key, thresholdPrefix)
	if !ok {
		return "", "", false
	}
	sensor, field, ok := strings.Cut(rest, ":")
	if !ok || sensor == "" || field == "" {
		return "", "", false
	}
	return models.SensorType(sensor), field, true
}
