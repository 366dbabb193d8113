// Package params holds the per-user txt2img configuration and its update rules.
package params

import "math"

// Field names a settable parameter.
type Field string

const (
	FieldPrompt          Field = "prompt"
	FieldNegativePrompt  Field = "negative_prompt"
	FieldSteps           Field = "steps"
	FieldCFGScale        Field = "cfg_scale"
	FieldWidth           Field = "width"
	FieldHeight          Field = "height"
	FieldSampler         Field = "sampler"
	FieldScheduler       Field = "scheduler"
	FieldSeed            Field = "seed"
	FieldSubseed         Field = "subseed"
	FieldSubseedStrength Field = "subseed_strength"
	FieldRestoreFaces    Field = "restore_faces"
	FieldTiling          Field = "tiling"
	FieldBatchSize       Field = "batch_size"
)

// RandomSeed asks the image backend to pick a seed itself.
const RandomSeed int64 = -1

// Range is an inclusive numeric domain.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp saturates v at the range bounds.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

var (
	StepsRange           = Range{Min: 5, Max: 150}
	CFGRange             = Range{Min: 1, Max: 20}
	SizeRange            = Range{Min: 64, Max: 2048}
	SubseedStrengthRange = Range{Min: 0, Max: 1}
	BatchSizeRange       = Range{Min: 1, Max: math.MaxInt32}
)

const (
	// StepsDelta is the increment used by the steps +/- buttons.
	StepsDelta = 5
	// CFGDelta is the increment used by the CFG +/- buttons.
	CFGDelta = 0.5
)

// Set is one user's generation configuration.
type Set struct {
	UserID          int64
	Prompt          string
	NegativePrompt  string
	Steps           int
	CFGScale        float64
	Width           int
	Height          int
	Sampler         string
	Scheduler       string
	Seed            int64
	Subseed         int64
	SubseedStrength float64
	RestoreFaces    bool
	Tiling          bool
	BatchSize       int
}

// New returns a Set for userID populated from defaults.
func New(userID int64, d Defaults) *Set {
	return &Set{
		UserID:          userID,
		NegativePrompt:  d.NegativePrompt,
		Steps:           d.Steps,
		CFGScale:        d.CFGScale,
		Width:           d.Width,
		Height:          d.Height,
		Sampler:         d.Sampler,
		Scheduler:       d.Scheduler,
		Seed:            RandomSeed,
		Subseed:         RandomSeed,
		SubseedStrength: 0,
		BatchSize:       d.BatchSize,
	}
}

// View returns a snapshot that is safe to read after the session lock is released.
func (s *Set) View() Set {
	return *s
}

// Update is a single tagged assignment for Apply.
type Update struct {
	Field Field
	Value any
}

// Apply assigns the recognised updates and returns the fields that changed.
// Unknown field names and values of the wrong type are skipped; bounded
// numeric fields are clamped into their domain.
func (s *Set) Apply(updates ...Update) []Field {
	applied := make([]Field, 0, len(updates))
	for _, u := range updates {
		setter, ok := schema[u.Field]
		if !ok {
			continue
		}
		if setter(s, u.Value) {
			applied = append(applied, u.Field)
		}
	}
	return applied
}

// ClampIncrement adds delta to a numeric field and saturates the result at
// [min, max]. It returns the new value; non-numeric fields are left untouched.
func (s *Set) ClampIncrement(f Field, delta, min, max float64) float64 {
	r := Range{Min: min, Max: max}
	switch f {
	case FieldSteps:
		s.Steps = int(math.Round(r.Clamp(float64(s.Steps) + delta)))
		return float64(s.Steps)
	case FieldCFGScale:
		s.CFGScale = r.Clamp(s.CFGScale + delta)
		return s.CFGScale
	case FieldWidth:
		s.Width = int(math.Round(r.Clamp(float64(s.Width) + delta)))
		return float64(s.Width)
	case FieldHeight:
		s.Height = int(math.Round(r.Clamp(float64(s.Height) + delta)))
		return float64(s.Height)
	case FieldSubseedStrength:
		s.SubseedStrength = r.Clamp(s.SubseedStrength + delta)
		return s.SubseedStrength
	}
	return 0
}

// Toggle flips a boolean field and returns its new value.
func (s *Set) Toggle(f Field) (bool, bool) {
	switch f {
	case FieldRestoreFaces:
		s.RestoreFaces = !s.RestoreFaces
		return s.RestoreFaces, true
	case FieldTiling:
		s.Tiling = !s.Tiling
		return s.Tiling, true
	}
	return false, false
}

type setter func(s *Set, v any) bool

var schema = map[Field]setter{
	FieldPrompt:         stringSetter(func(s *Set, v string) { s.Prompt = v }),
	FieldNegativePrompt: stringSetter(func(s *Set, v string) { s.NegativePrompt = v }),
	FieldSampler:        stringSetter(func(s *Set, v string) { s.Sampler = v }),
	FieldScheduler:      stringSetter(func(s *Set, v string) { s.Scheduler = v }),
	FieldSteps: numberSetter(StepsRange, func(s *Set, v float64) {
		s.Steps = int(math.Round(v))
	}),
	FieldCFGScale: numberSetter(CFGRange, func(s *Set, v float64) { s.CFGScale = v }),
	FieldWidth: numberSetter(SizeRange, func(s *Set, v float64) {
		s.Width = int(math.Round(v))
	}),
	FieldHeight: numberSetter(SizeRange, func(s *Set, v float64) {
		s.Height = int(math.Round(v))
	}),
	FieldSubseedStrength: numberSetter(SubseedStrengthRange, func(s *Set, v float64) { s.SubseedStrength = v }),
	FieldBatchSize: numberSetter(BatchSizeRange, func(s *Set, v float64) {
		s.BatchSize = int(math.Round(v))
	}),
	FieldSeed:         integerSetter(func(s *Set, v int64) { s.Seed = v }),
	FieldSubseed:      integerSetter(func(s *Set, v int64) { s.Subseed = v }),
	FieldRestoreFaces: boolSetter(func(s *Set, v bool) { s.RestoreFaces = v }),
	FieldTiling:       boolSetter(func(s *Set, v bool) { s.Tiling = v }),
}

func stringSetter(assign func(*Set, string)) setter {
	return func(s *Set, v any) bool {
		str, ok := v.(string)
		if !ok {
			return false
		}
		assign(s, str)
		return true
	}
}

func boolSetter(assign func(*Set, bool)) setter {
	return func(s *Set, v any) bool {
		b, ok := v.(bool)
		if !ok {
			return false
		}
		assign(s, b)
		return true
	}
}

func numberSetter(r Range, assign func(*Set, float64)) setter {
	return func(s *Set, v any) bool {
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) {
			return false
		}
		assign(s, r.Clamp(f))
		return true
	}
}

func integerSetter(assign func(*Set, int64)) setter {
	return func(s *Set, v any) bool {
		switch n := v.(type) {
		case int:
			assign(s, int64(n))
		case int32:
			assign(s, int64(n))
		case int64:
			assign(s, n)
		default:
			return false
		}
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
