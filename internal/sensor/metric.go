package sensor

import (
	"time"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

// Display is the presentation form of a metric derived from its SI reading
// and the active unit for its category. It is recomputed whenever the
// reading changes and re-derived in place when the operator switches units.
type Display struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Symbol    string  `json:"symbol"`
	Formatted string  `json:"formatted"`
	WithUnit  string  `json:"with_unit"`
}

// MetricValue is one field of one sensor instance: the SI reading of record
// plus its display enrichment.
type MetricValue struct {
	Reading   models.Reading `json:"reading"`
	Category  units.Category `json:"category"`
	Display   Display        `json:"display"`
	Timestamp time.Time      `json:"timestamp"`
}

// enrich derives the display form from the reading. Text readings pass
// through; numeric readings convert into the category's active unit. A
// category the registry does not know falls back to the raw value.
func enrich(reading models.Reading, cat units.Category, ts time.Time, reg *units.Registry) MetricValue {
	mv := MetricValue{Reading: reading, Category: cat, Timestamp: ts}

	if reading.IsText() || cat == units.Text {
		mv.Display = Display{
			Formatted: reading.Text(),
			WithUnit:  reading.Text(),
		}
		return mv
	}

	unit, err := reg.Active(cat)
	if err != nil {
		mv.Display = Display{
			Value:     reading.Float(),
			Formatted: reading.String(),
			WithUnit:  reading.String(),
		}
		return mv
	}

	formatted, _ := reg.Format(reading.Float(), cat)
	mv.Display = Display{
		Value:     unit.FromSI(reading.Float()),
		Unit:      unit.Name,
		Symbol:    unit.Symbol,
		Formatted: formatted,
		WithUnit:  withSymbol(formatted, unit.Symbol),
	}
	return mv
}

func withSymbol(formatted, symbol string) string {
	if symbol == "" {
		return formatted
	}
	switch symbol {
	case "°", "%", "'":
		return formatted + symbol
	default:
		return formatted + " " + symbol
	}
}
