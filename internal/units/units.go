// Package units converts between the SI canonical values stored in the
// sensor cache and the display units a helm display shows. Conversions are
// defined per measurement category; the registry tracks which unit is active
// for each category.
package units

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Category groups metric fields that share a unit choice. Canonical storage
// is SI: metres, metres per second, radians, degrees Celsius, volts,
// amperes, pascals, litres, litres per hour, revolutions per minute, hours,
// decimal degrees.
type Category string

const (
	Depth       Category = "depth"
	Distance    Category = "distance"
	Speed       Category = "speed"
	Angle       Category = "angle"
	Temperature Category = "temperature"
	Voltage     Category = "voltage"
	Current     Category = "current"
	Percent     Category = "percent"
	Pressure    Category = "pressure"
	Barometric  Category = "barometric"
	Volume      Category = "volume"
	Flow        Category = "flow"
	RPM         Category = "rpm"
	Hours       Category = "hours"
	Coordinate  Category = "coordinate"
	Count       Category = "count"
	Dilution    Category = "dilution"
	Text        Category = "text"
)

// Unit converts one way out of SI and back. Precision is the decimal places
// a display should render.
type Unit struct {
	Name      string
	Symbol    string
	Precision int
	toDisplay func(si float64) float64
	toSI      func(display float64) float64
}

// FromSI converts a canonical SI value to this unit.
func (u Unit) FromSI(si float64) float64 { return u.toDisplay(si) }

// ToSI converts a value in this unit back to SI.
func (u Unit) ToSI(display float64) float64 { return u.toSI(display) }

// factor builds a unit where display = si * f.
func factor(name, symbol string, precision int, f float64) Unit {
	return Unit{
		Name:      name,
		Symbol:    symbol,
		Precision: precision,
		toDisplay: func(si float64) float64 { return si * f },
		toSI:      func(d float64) float64 { return d / f },
	}
}

// affine builds a unit where display = si*f + offset. Only temperature
// needs it.
func affine(name, symbol string, precision int, f, offset float64) Unit {
	return Unit{
		Name:      name,
		Symbol:    symbol,
		Precision: precision,
		toDisplay: func(si float64) float64 { return si*f + offset },
		toSI:      func(d float64) float64 { return (d - offset) / f },
	}
}

const (
	metresPerKnot         = 1852.0 / 3600.0
	metresPerFoot         = 0.3048
	metresPerFathom       = 1.8288
	metresPerNauticalMile = 1852.0
	metresPerStatuteMile  = 1609.344
	litresPerGallon       = 3.785411784
	pascalsPerPSI         = 6894.757293168
)

// catalog returns every category's units, canonical unit first.
func catalog() map[Category][]Unit {
	return map[Category][]Unit{
		Depth: {
			factor("m", "m", 1, 1),
			factor("ft", "ft", 1, 1/metresPerFoot),
			factor("fathom", "ftm", 1, 1/metresPerFathom),
		},
		Distance: {
			factor("m", "m", 0, 1),
			factor("nm", "nm", 2, 1/metresPerNauticalMile),
			factor("km", "km", 2, 0.001),
			factor("mi", "mi", 2, 1/metresPerStatuteMile),
		},
		Speed: {
			factor("m/s", "m/s", 1, 1),
			factor("kn", "kn", 1, 1/metresPerKnot),
			factor("km/h", "km/h", 1, 3.6),
			factor("mph", "mph", 1, 3600.0/metresPerStatuteMile),
		},
		Angle: {
			factor("rad", "rad", 3, 1),
			factor("deg", "°", 0, 180.0/math.Pi),
		},
		Temperature: {
			affine("celsius", "°C", 1, 1, 0),
			affine("fahrenheit", "°F", 1, 9.0/5.0, 32),
			affine("kelvin", "K", 1, 1, 273.15),
		},
		Voltage: {factor("V", "V", 2, 1)},
		Current: {factor("A", "A", 1, 1)},
		Percent: {factor("%", "%", 0, 1)},
		Pressure: {
			factor("kPa", "kPa", 0, 0.001),
			factor("bar", "bar", 2, 1e-5),
			factor("psi", "psi", 1, 1/pascalsPerPSI),
		},
		Barometric: {
			factor("hPa", "hPa", 1, 0.01),
			factor("inHg", "inHg", 2, 1/3386.389),
		},
		Volume: {
			factor("L", "L", 0, 1),
			factor("gal", "gal", 1, 1/litresPerGallon),
		},
		Flow: {
			factor("L/h", "L/h", 1, 1),
			factor("gal/h", "gal/h", 2, 1/litresPerGallon),
		},
		RPM:   {factor("rpm", "rpm", 0, 1)},
		Hours: {factor("h", "h", 1, 1)},
		Coordinate: {
			factor("deg", "°", 5, 1),
		},
		Count:    {factor("", "", 0, 1)},
		Dilution: {factor("", "", 1, 1)},
	}
}

// defaultActive is the factory display selection: metric depths, knots for
// speed, degrees for angles.
func defaultActive() map[Category]string {
	return map[Category]string{
		Depth:       "m",
		Distance:    "nm",
		Speed:       "kn",
		Angle:       "deg",
		Temperature: "celsius",
		Voltage:     "V",
		Current:     "A",
		Percent:     "%",
		Pressure:    "kPa",
		Barometric:  "hPa",
		Volume:      "L",
		Flow:        "L/h",
		RPM:         "rpm",
		Hours:       "h",
		Coordinate:  "deg",
		Count:       "",
		Dilution:    "",
	}
}

// Registry holds the unit catalog and the active unit per category. Reads
// are concurrent; SetActive takes the write lock.
type Registry struct {
	mu     sync.RWMutex
	units  map[Category][]Unit
	active map[Category]string
}

func NewRegistry() *Registry {
	return &Registry{
		units:  catalog(),
		active: defaultActive(),
	}
}

// Active returns the active unit for the category.
func (r *Registry) Active(cat Category) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.active[cat]
	if !ok {
		return Unit{}, fmt.Errorf("units: unknown category %q", cat)
	}
	u, ok := r.lookup(cat, name)
	if !ok {
		return Unit{}, fmt.Errorf("units: category %q has no unit %q", cat, name)
	}
	return u, nil
}

// SetActive switches the category's display unit. Unknown categories or
// units are configuration errors and leave the selection unchanged.
func (r *Registry) SetActive(cat Category, unitName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[cat]; !ok {
		return fmt.Errorf("units: unknown category %q", cat)
	}
	if _, ok := r.lookup(cat, unitName); !ok {
		return fmt.Errorf("units: category %q has no unit %q", cat, unitName)
	}
	r.active[cat] = unitName
	return nil
}

// Convert maps an SI value into the category's active display unit.
func (r *Registry) Convert(si float64, cat Category) (float64, error) {
	u, err := r.Active(cat)
	if err != nil {
		return 0, err
	}
	return u.FromSI(si), nil
}

// ToSI maps a display value in the category's active unit back to SI.
func (r *Registry) ToSI(display float64, cat Category) (float64, error) {
	u, err := r.Active(cat)
	if err != nil {
		return 0, err
	}
	return u.ToSI(display), nil
}

// Format renders an SI value in the active unit at the unit's precision,
// without the symbol. Coordinates render as degrees and decimal minutes.
func (r *Registry) Format(si float64, cat Category) (string, error) {
	u, err := r.Active(cat)
	if err != nil {
		return "", err
	}
	if cat == Coordinate {
		return formatCoordinate(si), nil
	}
	return fmt.Sprintf("%.*f", u.Precision, u.FromSI(si)), nil
}

// Names lists the category's unit names, canonical first.
func (r *Registry) Names(cat Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.units[cat]))
	for _, u := range r.units[cat] {
		out = append(out, u.Name)
	}
	return out
}

// Categories lists every known category, sorted.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.units))
	for cat := range r.units {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActiveNames snapshots the active unit per category.
func (r *Registry) ActiveNames() map[Category]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Category]string, len(r.active))
	for cat, name := range r.active {
		out[cat] = name
	}
	return out
}

func (r *Registry) lookup(cat Category, name string) (Unit, bool) {
	for _, u := range r.units[cat] {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}

// formatCoordinate renders decimal degrees as degrees and decimal minutes,
// the form position displays use. Sign is kept on the degrees.
func formatCoordinate(deg float64) string {
	sign := ""
	if deg < 0 {
		sign = "-"
		deg = -deg
	}
	whole := math.Floor(deg)
	minutes := (deg - whole) * 60.0
	return fmt.Sprintf("%s%d°%06.3f'", sign, int(whole), minutes)
}
