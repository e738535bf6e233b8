package observation

import (
	"math"
	"strings"
)

// Category labels one kind of observation: an activity or a wellbeing dimension.
type Category string

// Activity categories.
const (
	Running            Category = "running"
	Cycling            Category = "cycling"
	Swimming           Category = "swimming"
	Hiking             Category = "hiking"
	CrossCountrySkiing Category = "cross-country skiing"
	Gym                Category = "gym"
	GymUpperBody       Category = "gym: ub"
	GymLowerBody       Category = "gym: lb"
	GymCore            Category = "gym: c"
)

// Wellbeing dimensions.
const (
	Sleep     Category = "sleep"
	Exercise  Category = "exercise"
	Happiness Category = "happiness"
	Wellbeing Category = "wellbeing"
	Eating    Category = "eating"
	Stress    Category = "stress"
	Fasting   Category = "fasting"
)

// Stream is the time series a category belongs to.
type Stream string

const (
	StreamActivity  Stream = "activity"
	StreamWellbeing Stream = "wellbeing"
)

// CategorySpec describes how values of a category are validated and compared.
type CategorySpec struct {
	Stream Stream
	// Measured categories require a numeric value; the others are plain
	// attendance events and reject one.
	Measured bool
	Min, Max float64
	// Inverted categories improve as the value decreases.
	Inverted bool
	// AllowsUnscored accepts the unscored sentinel and stores it as missing.
	AllowsUnscored bool
	Unit           string
}

var (
	distanceSpec   = CategorySpec{Stream: StreamActivity, Measured: true, Min: 0, Max: math.Inf(1), Unit: "km"}
	attendanceSpec = CategorySpec{Stream: StreamActivity}
	scoreSpec      = CategorySpec{Stream: StreamWellbeing, Measured: true, Min: 0, Max: 5, AllowsUnscored: true}
)

var categorySpecs = map[Category]CategorySpec{
	Running:            distanceSpec,
	Cycling:            distanceSpec,
	Swimming:           distanceSpec,
	Hiking:             distanceSpec,
	CrossCountrySkiing: distanceSpec,
	Gym:                attendanceSpec,
	GymUpperBody:       attendanceSpec,
	GymLowerBody:       attendanceSpec,
	GymCore:            attendanceSpec,
	Sleep:              scoreSpec,
	Exercise:           scoreSpec,
	Happiness:          scoreSpec,
	Wellbeing:          scoreSpec,
	Eating:             scoreSpec,
	Stress:             withInverted(scoreSpec),
	Fasting:            scoreSpec,
}

func withInverted(spec CategorySpec) CategorySpec {
	spec.Inverted = true
	return spec
}

// Activities lists the activity categories in a stable order.
func Activities() []Category {
	return []Category{Running, Cycling, Swimming, Hiking, CrossCountrySkiing, Gym, GymUpperBody, GymLowerBody, GymCore}
}

// Dimensions lists the wellbeing dimensions in daily-log order.
func Dimensions() []Category {
	return []Category{Sleep, Exercise, Happiness, Wellbeing, Eating, Stress, Fasting}
}

// ParseCategory resolves a label case-insensitively.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := categorySpecs[c]
	return c, ok
}

// Spec returns the category's validation rules.
func (c Category) Spec() (CategorySpec, bool) {
	spec, ok := categorySpecs[c]
	return spec, ok
}

// Inverted reports whether lower values are better for c.
func (c Category) Inverted() bool {
	return categorySpecs[c].Inverted
}

// Stream returns the stream c belongs to, or "" for unknown categories.
func (c Category) Stream() Stream {
	return categorySpecs[c].Stream
}

var slugReplacer = strings.NewReplacer(": ", "-", ":", "-", " ", "-")

// Slug is a file-name and catalog-key friendly form, e.g. "gym-ub".
func (c Category) Slug() string {
	return slugReplacer.Replace(string(c))
}

func (c Category) String() string {
	return string(c)
}
