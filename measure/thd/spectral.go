package thd

import (
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-spatial/dsp/spectrum"
	"github.com/cwbudde/algo-spatial/dsp/window"
)

const (
	defaultRangeLowerHz = 20.0
	defaultRangeUpperHz = 20000.0
)

// Config holds spectral THD analysis parameters.
type Config struct {
	SampleRate      float64
	FFTSize         int
	FundamentalFreq float64 // 0 searches for the strongest bin in range
	RangeLowerFreq  float64
	RangeUpperFreq  float64
	CaptureBins     int // bins summed either side of each peak; 0 picks from the window
	MaxHarmonics    int
	// Window is applied before the FFT. The zero value selects
	// Blackman-Harris; rectangular analysis leaks too much to be useful.
	Window window.Type
}

// Result holds spectral THD measurement results. Ratios are linear
// amplitude ratios relative to the fundamental.
type Result struct {
	FundamentalFreq  float64
	FundamentalLevel float64
	THD              float64
	THDN             float64
	THDdB            float64
	THDNdB           float64
	Noise            float64
	Harmonics        []float64
	SINAD            float64
}

// Calculator performs THD analysis on frequency-domain data.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with defaults filled in.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: normalizeConfig(cfg)}
}

// AnalyzeSignal performs one-shot THD analysis from a time-domain signal.
func AnalyzeSignal(signal []float64, cfg Config) Result {
	return NewCalculator(cfg).AnalyzeSignal(signal)
}

// AnalyzeSignal windows the signal, transforms it and evaluates the
// distortion metrics. Signals shorter than FFTSize are zero padded; longer
// signals are truncated.
func (c *Calculator) AnalyzeSignal(signal []float64) Result {
	if len(signal) == 0 {
		return Result{}
	}

	cfg := c.cfg

	fftSize := cfg.FFTSize
	if fftSize <= 0 {
		fftSize = nextPowerOf2(len(signal))
	}

	if fftSize <= 1 {
		return Result{}
	}

	n := min(len(signal), fftSize)
	coeffs := window.Generate(c.windowType(), n)

	in := make([]complex128, fftSize)
	for i := range n {
		in[i] = complex(signal[i]*coeffs[i], 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Result{}
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return Result{}
	}

	magSquared := spectrum.Power(out[:fftSize/2+1])

	cfg.FFTSize = fftSize
	calc := Calculator{cfg: cfg}

	return calc.CalculateFromMagnitude(magSquared)
}

// CalculateFromMagnitude computes THD metrics from a squared-magnitude
// spectrum holding the bins [0..Nyquist]. Harmonic and noise components are
// combined as powers.
func (c *Calculator) CalculateFromMagnitude(magSquared []float64) Result {
	if len(magSquared) <= 1 {
		return Result{}
	}

	cfg := c.cfg
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = 2 * (len(magSquared) - 1)
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = float64(cfg.FFTSize)
	}

	maxBin := len(magSquared) - 1
	binHz := cfg.SampleRate / float64(cfg.FFTSize)

	lowerBin := clampInt(int(math.Round(cfg.RangeLowerFreq/binHz)), 1, maxBin)
	upperBin := clampInt(int(math.Round(cfg.RangeUpperFreq/binHz)), lowerBin, maxBin)

	fundBin := c.findFundamentalBin(magSquared, lowerBin, upperBin, binHz)
	if fundBin < 1 {
		return Result{}
	}

	capture := cfg.CaptureBins
	if capture <= 0 {
		capture = c.autoCaptureBins()
	}

	capture = min(capture, fundBin/2)

	fundPower := bandPower(magSquared, fundBin, capture)
	res := Result{FundamentalFreq: float64(fundBin) * binHz}

	if fundPower <= 0 {
		return res
	}

	res.FundamentalLevel = math.Sqrt(fundPower)

	// Bins already attributed to the fundamental or a harmonic are excluded
	// from the noise sum.
	claimed := make([]bool, len(magSquared))
	claim(claimed, fundBin, capture)

	harmonicPower := 0.0
	for k := 2; ; k++ {
		if cfg.MaxHarmonics > 0 && k-1 > cfg.MaxHarmonics {
			break
		}

		bin := k * fundBin
		if bin > upperBin {
			break
		}

		p := bandPower(magSquared, bin, capture)
		harmonicPower += p
		res.Harmonics = append(res.Harmonics, math.Sqrt(p)/res.FundamentalLevel)
		claim(claimed, bin, capture)
	}

	noisePower := 0.0
	for i := lowerBin; i <= upperBin; i++ {
		if !claimed[i] {
			noisePower += magSquared[i]
		}
	}

	res.THD = math.Sqrt(harmonicPower / fundPower)
	res.Noise = math.Sqrt(noisePower / fundPower)
	res.THDN = math.Sqrt((harmonicPower + noisePower) / fundPower)
	res.THDdB = ratioToDB(res.THD)
	res.THDNdB = ratioToDB(res.THDN)
	res.SINAD = -res.THDNdB

	return res
}

func (c *Calculator) windowType() window.Type {
	if c.cfg.Window == window.TypeRectangular {
		return window.TypeBlackmanHarris4Term
	}

	return c.cfg.Window
}

func (c *Calculator) findFundamentalBin(magSquared []float64, lowerBin, upperBin int, binHz float64) int {
	if c.cfg.FundamentalFreq > 0 {
		bin := int(math.Round(c.cfg.FundamentalFreq / binHz))
		if bin < 1 || bin >= len(magSquared) {
			return -1
		}

		return bin
	}

	best := -1
	bestVal := 0.0

	for i := lowerBin; i <= upperBin; i++ {
		if magSquared[i] > bestVal {
			bestVal = magSquared[i]
			best = i
		}
	}

	return best
}

// autoCaptureBins returns the main-lobe half width of the analysis window.
func (c *Calculator) autoCaptureBins() int {
	switch c.windowType() {
	case window.TypeHann, window.TypeTukey:
		return 2
	case window.TypeBlackmanHarris4Term:
		return 4
	default:
		return 1
	}
}

func normalizeConfig(cfg Config) Config {
	if cfg.RangeLowerFreq <= 0 {
		cfg.RangeLowerFreq = defaultRangeLowerHz
	}

	if cfg.RangeUpperFreq <= 0 {
		cfg.RangeUpperFreq = defaultRangeUpperHz
	}

	if cfg.RangeUpperFreq < cfg.RangeLowerFreq {
		cfg.RangeLowerFreq, cfg.RangeUpperFreq = cfg.RangeUpperFreq, cfg.RangeLowerFreq
	}

	return cfg
}

func bandPower(magSquared []float64, bin, capture int) float64 {
	lo := max(bin-capture, 0)
	hi := min(bin+capture, len(magSquared)-1)

	sum := 0.0
	for i := lo; i <= hi; i++ {
		sum += magSquared[i]
	}

	return sum
}

func claim(claimed []bool, bin, capture int) {
	lo := max(bin-capture, 0)
	hi := min(bin+capture, len(claimed)-1)

	for i := lo; i <= hi; i++ {
		claimed[i] = true
	}
}

func ratioToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(v)
}

func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}

	if val > hi {
		return hi
	}

	return val
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
