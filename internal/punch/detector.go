// Package punch turns a live GPS position stream into virtual punches
// against a georeferenced control sequence.
package punch

import (
	"time"

	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/pkg/geospatial"
)

// Config tunes a detector. Zero values fall back to the defaults below.
type Config struct {
	// RadiusMeters is the punch radius for controls without their own radius.
	RadiusMeters float64
	// ApproachMeters triggers approach events for the next expected control.
	ApproachMeters float64
	// Debounce suppresses repeat punches of one control within the window.
	Debounce time.Duration
	// PoorAccuracyMeters flags samples with worse reported accuracy.
	PoorAccuracyMeters float64
}

// DefaultConfig matches the field-tested tuning: 20 m punch radius, 50 m
// approach ring, 5 s debounce, 30 m accuracy warning threshold.
func DefaultConfig() Config {
	return Config{
		RadiusMeters:       20,
		ApproachMeters:     50,
		Debounce:           5 * time.Second,
		PoorAccuracyMeters: 30,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = d.RadiusMeters
	}
	if c.ApproachMeters <= 0 {
		c.ApproachMeters = d.ApproachMeters
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.PoorAccuracyMeters <= 0 {
		c.PoorAccuracyMeters = d.PoorAccuracyMeters
	}
	return c
}

// State is the detector lifecycle: ready until the first Start, running while
// processing, finished after Stop.
type State string

const (
	StateReady    State = "ready"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Callbacks receive detector events. Nil callbacks are skipped. They are
// invoked synchronously from OnPosition, on the caller's goroutine.
type Callbacks struct {
	OnPunch           func(domain.VirtualPunch)
	OnApproaching     func(control domain.Control, distance float64)
	OnAccuracyWarning func(sample domain.PositionSample)
}

// Detector is the virtual punch state machine. It is single-owner: callers
// must serialize OnPosition calls; the detector itself holds no locks.
type Detector struct {
	cfg       Config
	callbacks Callbacks

	controls  []domain.Control
	state     State
	punches   []domain.VirtualPunch
	lastPunch map[string]time.Time // control id -> last punch time (debounce)
	punched   map[string]bool
	nextIdx   int
}

// New creates a detector with no controls loaded.
func New(cfg Config, cb Callbacks) *Detector {
	d := &Detector{cfg: cfg.withDefaults(), callbacks: cb}
	d.Reset()
	return d
}

// SetControls loads the course controls in declared course order and resets
// all session state.
func (d *Detector) SetControls(controls []domain.Control) {
	d.controls = append([]domain.Control(nil), controls...)
	d.Reset()
}

// Reset clears accumulated punches and rewinds the expected-control cursor
// for a fresh attempt.
func (d *Detector) Reset() {
	d.state = StateReady
	d.punches = nil
	d.lastPunch = make(map[string]time.Time)
	d.punched = make(map[string]bool)
	d.nextIdx = 0
}

// Start begins processing position updates.
func (d *Detector) Start() {
	if d.state == StateReady {
		d.state = StateRunning
	}
}

// Stop pauses processing without discarding accumulated state.
func (d *Detector) Stop() {
	if d.state == StateRunning {
		d.state = StateFinished
	}
}

// Resume reverses a Stop.
func (d *Detector) Resume() {
	if d.state == StateFinished {
		d.state = StateRunning
	}
}

// State reports the current lifecycle state.
func (d *Detector) State() State { return d.state }

// Punches returns the punches recorded so far, in punch order.
func (d *Detector) Punches() []domain.VirtualPunch {
	return append([]domain.VirtualPunch(nil), d.punches...)
}

// OnPosition processes one GPS sample. Inactive detectors ignore updates
// entirely. Samples without a plausible location are dropped.
func (d *Detector) OnPosition(sample domain.PositionSample) {
	if d.state != StateRunning {
		return
	}
	if sample.Location.Lat == 0 && sample.Location.Lng == 0 {
		return
	}

	if d.cfg.PoorAccuracyMeters > 0 && sample.Accuracy > d.cfg.PoorAccuracyMeters {
		if d.callbacks.OnAccuracyWarning != nil {
			d.callbacks.OnAccuracyWarning(sample)
		}
		// Poor accuracy is flagged, never gated: the punch below still counts
		// and carries the accuracy for later review.
	}

	for i, ctl := range d.controls {
		if d.punched[ctl.ID] {
			continue
		}
		if ctl.Lat == nil || ctl.Lng == nil {
			continue
		}

		dist := geospatial.Haversine(sample.Location.Lat, sample.Location.Lng, *ctl.Lat, *ctl.Lng)

		if dist <= d.effectiveRadius(ctl) {
			d.registerPunch(i, ctl, sample, dist)
			continue
		}

		if dist <= d.cfg.ApproachMeters && i == d.nextIdx && d.callbacks.OnApproaching != nil {
			d.callbacks.OnApproaching(ctl, dist)
		}
	}
}

func (d *Detector) effectiveRadius(ctl domain.Control) float64 {
	if ctl.Radius > 0 {
		return ctl.Radius
	}
	return d.cfg.RadiusMeters
}

func (d *Detector) registerPunch(idx int, ctl domain.Control, sample domain.PositionSample, dist float64) {
	if last, ok := d.lastPunch[ctl.ID]; ok && sample.Time.Sub(last) < d.cfg.Debounce {
		return
	}
	d.lastPunch[ctl.ID] = sample.Time

	p := domain.VirtualPunch{
		ControlID:           ctl.ID,
		ControlCode:         ctl.Code,
		Time:                sample.Time,
		Location:            sample.Location,
		Accuracy:            sample.Accuracy,
		DistanceFromControl: dist,
	}
	d.punches = append(d.punches, p)
	d.punched[ctl.ID] = true

	// The cursor only advances when the expected control was punched;
	// punching ahead or behind is recorded but does not skip the sequence.
	if idx == d.nextIdx {
		for d.nextIdx < len(d.controls) && d.punched[d.controls[d.nextIdx].ID] {
			d.nextIdx++
		}
	}

	if d.callbacks.OnPunch != nil {
		d.callbacks.OnPunch(p)
	}
}

// IsComplete reports whether the cursor has advanced past the final control.
func (d *Detector) IsComplete() bool {
	return len(d.controls) > 0 && d.nextIdx >= len(d.controls)
}

// ValidatePunches compares the punch sequence positionally against the
// expected control order: expected[i] is matched only against punched[i].
// An out-of-order but complete run therefore reports the swapped controls as
// missing. That positional behavior is deliberate and matches how physical
// punch cards are checked.
func (d *Detector) ValidatePunches() []string {
	var missing []string
	for i, ctl := range d.controls {
		if i >= len(d.punches) || d.punches[i].ControlCode != ctl.Code {
			missing = append(missing, ctl.Code)
		}
	}
	return missing
}

// Summary freezes the session outcome: ok with a clean positional check, dnf
// with no punches at all, mp otherwise.
func (d *Detector) Summary() domain.SessionSummary {
	missing := d.ValidatePunches()

	result := domain.ResultOK
	switch {
	case len(d.punches) == 0:
		result = domain.ResultDNF
	case len(missing) > 0:
		result = domain.ResultMP
	}

	return domain.SessionSummary{
		Result:          result,
		MissingControls: missing,
		Punches:         d.Punches(),
	}
}
