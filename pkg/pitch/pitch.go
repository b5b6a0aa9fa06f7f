// Package pitch implements the YIN fundamental-frequency estimator and
// the note/cents classifier that sits on top of it (spec.md §4.5, §4.6).
// The difference-function and cumulative-mean-normalized-difference
// arrays are plain slices reused across calls by Detector so they are
// not reallocated per block, the same allocation discipline the teacher
// applies to its audio render path; the median step copies the (at most
// five-entry) smoothing window on each call.
package pitch

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	minFrequency = 27.5
	maxFrequency = 4186.0

	rmsGate         = 0.01
	differenceTheta = 0.15

	smoothingWindow = 5
)

// Reading is one accepted pitch estimate, already smoothed.
type Reading struct {
	FrequencyHz  float64
	Confidence   float64
	AmplitudeRMS float64
	Timestamp    time.Time
}

// Valid reports whether r clears the confidence/amplitude gate spec.md
// §3 defines for a usable reading.
func (r Reading) Valid() bool {
	return r.Confidence > 0.85 && r.AmplitudeRMS > 0.01
}

// Detector runs the YIN algorithm over successive blocks of the same
// sample rate and maintains the trailing median-smoothing window.
type Detector struct {
	sampleRate int

	diff       []float64 // d(tau), reused
	cmnd       []float64 // d'(tau), reused
	history    []float64 // accepted frequencies, most recent last
	nowFunc    func() time.Time
}

// NewDetector constructs a Detector for sampleRate. nowFunc defaults to
// time.Now; tests may override it via WithClock.
func NewDetector(sampleRate int) *Detector {
	return &Detector{
		sampleRate: sampleRate,
		nowFunc:    time.Now,
	}
}

// WithClock overrides the detector's time source, for deterministic
// tests of Timestamp stamping.
func (d *Detector) WithClock(f func() time.Time) *Detector {
	d.nowFunc = f
	return d
}

func rms(block []float32) float64 {
	var sumSquares float64
	for _, x := range block {
		v := float64(x)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(block)))
}

// Process runs one YIN pass over block and returns a smoothed Reading,
// or false if no usable pitch could be extracted (spec.md: "never
// throws; invalid inputs yield None").
func (d *Detector) Process(block []float32) (Reading, bool) {
	amplitude := rms(block)
	if amplitude <= rmsGate {
		return Reading{}, false
	}

	tauMin := int(math.Ceil(float64(d.sampleRate) / maxFrequency))
	tauMax := int(math.Floor(float64(d.sampleRate) / minFrequency))
	if tauMax >= len(block) {
		tauMax = len(block) - 1
	}
	if tauMin < 1 {
		tauMin = 1
	}
	if tauMax <= tauMin {
		return Reading{}, false
	}

	d.ensureCapacity(tauMax + 1)
	d.computeDifference(block, 1, tauMax)
	d.computeCMND(tauMin, tauMax)

	tau, found := d.findFirstMinimum(tauMin, tauMax)
	if !found {
		return Reading{}, false
	}

	tauStar := d.parabolicInterpolate(tau, tauMax)
	if tauStar <= 0 {
		return Reading{}, false
	}

	freq := float64(d.sampleRate) / tauStar
	if freq < minFrequency || freq > maxFrequency {
		return Reading{}, false
	}

	confidence := 1 - d.cmnd[tau]
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	smoothed := d.pushAndSmooth(freq)

	return Reading{
		FrequencyHz:  smoothed,
		Confidence:   confidence,
		AmplitudeRMS: amplitude,
		Timestamp:    d.nowFunc(),
	}, true
}

func (d *Detector) ensureCapacity(n int) {
	if cap(d.diff) < n {
		d.diff = make([]float64, n)
		d.cmnd = make([]float64, n)
	} else {
		d.diff = d.diff[:n]
		d.cmnd = d.cmnd[:n]
	}
}

// computeDifference fills d.diff[tau] for tau in [tauMin, tauMax] with
// the squared-difference autocorrelation sum, per spec.md step 3.
func (d *Detector) computeDifference(block []float32, tauMin, tauMax int) {
	n := len(block) - tauMax - 1
	if n < 1 {
		n = 1
	}
	for tau := tauMin; tau <= tauMax; tau++ {
		var sum float64
		limit := n
		if limit+tau > len(block) {
			limit = len(block) - tau
		}
		for j := 0; j < limit; j++ {
			delta := float64(block[j]) - float64(block[j+tau])
			sum += delta * delta
		}
		d.diff[tau] = sum
	}
}

// computeCMND fills d.cmnd per spec.md step 4: d'(0) = 1, and for tau >=
// 1, d'(tau) = d(tau) * tau / runningSum(d(1..tau)).
func (d *Detector) computeCMND(tauMin, tauMax int) {
	d.cmnd[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += d.diff[tau]
		if tau < tauMin {
			d.cmnd[tau] = 1
			continue
		}
		if running > 0 {
			d.cmnd[tau] = d.diff[tau] * float64(tau) / running
		} else {
			d.cmnd[tau] = 1
		}
	}
}

// findFirstMinimum implements spec.md step 5: scan from tauMin for the
// first tau with d'(tau) < 0.15, then walk forward while d' keeps
// decreasing to land on the local minimum.
func (d *Detector) findFirstMinimum(tauMin, tauMax int) (int, bool) {
	for tau := tauMin; tau < tauMax; tau++ {
		if d.cmnd[tau] < differenceTheta {
			for tau+1 <= tauMax && d.cmnd[tau+1] < d.cmnd[tau] {
				tau++
			}
			return tau, true
		}
	}
	return 0, false
}

// parabolicInterpolate implements spec.md step 6, falling back to the
// unrefined tau at either edge of the search range where the
// neighboring sample does not exist.
func (d *Detector) parabolicInterpolate(tau, tauMax int) float64 {
	if tau <= 0 || tau >= tauMax {
		return float64(tau)
	}
	s0, s1, s2 := d.cmnd[tau-1], d.cmnd[tau], d.cmnd[tau+1]
	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tau)
	}
	return float64(tau) + (s2-s0)/denom
}

// pushAndSmooth appends freq to the trailing history (capped at
// smoothingWindow) and returns the median, per spec.md's
// even-count-averages-the-two-middle-values rule.
func (d *Detector) pushAndSmooth(freq float64) float64 {
	d.history = append(d.history, freq)
	if len(d.history) > smoothingWindow {
		d.history = d.history[len(d.history)-smoothingWindow:]
	}

	sorted := make([]float64, len(d.history))
	copy(sorted, d.history)
	floats.Sort(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
