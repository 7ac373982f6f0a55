package sqlscan

import (
	"fmt"
	"sync"
)

// Mode selects the injection detector implementation.
type Mode string

const (
	// ModeOff disables injection detection.
	ModeOff Mode = "off"

	// ModeRegex enables the pattern-based detector.
	ModeRegex Mode = "regex"
)

// DefaultMode is the detector used when nothing is configured.
const DefaultMode = ModeRegex

// IsValid checks if the mode is a known detector mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeOff, ModeRegex:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a string into a Mode, returning an error if invalid.
func ParseMode(s string) (Mode, error) {
	mode := Mode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid detector mode: %q, valid modes are: off, regex", s)
	}
	return mode, nil
}

// Detection is one injection family matched in a text.
type Detection struct {
	Kind        InjectionKind `json:"kind"`
	Pattern     string        `json:"pattern"`
	Description string        `json:"description,omitempty"`
	Severity    int           `json:"severity"`
}

// PatternDetector finds injection techniques in raw statement text. A
// structural parser or a trained classifier can replace the regex detector
// behind this interface.
type PatternDetector interface {
	// Detect returns at most one Detection per InjectionKind, in family order.
	Detect(text string) []Detection

	// Mode returns the mode this detector implements.
	Mode() Mode
}

// RegexDetector matches the patterns of a PatternSet.
type RegexDetector struct {
	patterns    *PatternSet
	maxInputLen int
}

// RegexDetectorOption is a functional option for configuring RegexDetector.
type RegexDetectorOption func(*RegexDetector)

// WithPatternSet sets a custom pattern set for the detector.
func WithPatternSet(ps *PatternSet) RegexDetectorOption {
	return func(d *RegexDetector) {
		d.patterns = ps
	}
}

// WithMaxInputLength caps how much of the input is scanned.
func WithMaxInputLength(maxLen int) RegexDetectorOption {
	return func(d *RegexDetector) {
		d.maxInputLen = maxLen
	}
}

// NewRegexDetector creates a regex detector with the default patterns.
func NewRegexDetector(opts ...RegexDetectorOption) *RegexDetector {
	d := &RegexDetector{
		patterns:    NewPatternSet(),
		maxInputLen: 1048576,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect scans text family by family and stops at the first matching
// pattern of each family.
func (d *RegexDetector) Detect(text string) []Detection {
	if d.maxInputLen > 0 && len(text) > d.maxInputLen {
		text = text[:d.maxInputLen]
	}

	var detections []Detection
	for _, kind := range InjectionKinds() {
		for _, p := range d.patterns.PatternsByKind(kind) {
			if p.Regex.MatchString(text) {
				detections = append(detections, Detection{
					Kind:        kind,
					Pattern:     p.Name,
					Description: p.Description,
					Severity:    p.Severity,
				})
				break
			}
		}
	}
	return detections
}

// Mode returns ModeRegex.
func (d *RegexDetector) Mode() Mode {
	return ModeRegex
}

// NoOpDetector never reports anything (used for ModeOff).
type NoOpDetector struct{}

// Detect always returns nil.
func (NoOpDetector) Detect(string) []Detection { return nil }

// Mode returns ModeOff.
func (NoOpDetector) Mode() Mode { return ModeOff }

var (
	registryMu       sync.RWMutex
	detectorRegistry = make(map[Mode]func() PatternDetector)
)

// RegisterDetector registers a detector factory for a mode, replacing any
// previous registration.
func RegisterDetector(mode Mode, factory func() PatternDetector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	detectorRegistry[mode] = factory
}

// NewDetector creates the detector registered for mode.
func NewDetector(mode Mode) (PatternDetector, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid detector mode: %q", mode)
	}
	if mode == ModeOff {
		return NoOpDetector{}, nil
	}

	registryMu.RLock()
	factory, ok := detectorRegistry[mode]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("detector not registered for mode: %q", mode)
	}
	return factory(), nil
}

func init() {
	RegisterDetector(ModeRegex, func() PatternDetector {
		return NewRegexDetector()
	})
}

// injectionKindsOf collapses detections to their families.
func injectionKindsOf(detections []Detection) []InjectionKind {
	if len(detections) == 0 {
		return nil
	}
	kinds := make([]InjectionKind, 0, len(detections))
	for _, d := range detections {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}
