package settings

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

func setupTestStore(t *testing.T) *Store {
	store, err := NewStore("localhost:6379", "", 1, zerolog.Nop()) // DB 1 for testing
	if err != nil {
		t.Skip("Redis not available, skipping test")
	}
	t.Cleanup(func() {
		store.rdb.FlushDB(context.Background())
		store.Close()
	})
	return store
}

func TestStore_UnitRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnit(ctx, units.Category("depth"), "ft"))
	require.NoError(t, store.SaveUnit(ctx, units.Category("speed"), "kn"))

	prefs, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ft", prefs.Units[units.Category("depth")])
	assert.Equal(t, "kn", prefs.Units[units.Category("speed")])
}

func TestStore_ThresholdRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	critical := 11.0
	th := alarm.Thresholds{
		CriticalLow: &critical,
		Hysteresis:  0.2,
		Enabled:     true,
	}
	require.NoError(t, store.SaveThresholds(ctx, models.SensorType("battery"), "voltage", th))

	prefs, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, prefs.Thresholds, 1)

	got := prefs.Thresholds[0]
	assert.Equal(t, models.SensorType("battery"), got.Sensor)
	assert.Equal(t, "voltage", got.Field)
	require.NotNil(t, got.Thresholds.CriticalLow)
	assert.InDelta(t, 11.0, *got.Thresholds.CriticalLow, 1e-9)
	assert.True(t, got.Thresholds.Enabled)
}

func TestStore_LoadEmpty(t *testing.T) {
	store := setupTestStore(t)

	prefs, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prefs.Units)
	assert.Empty(t, prefs.Thresholds)
}
