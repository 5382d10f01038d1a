// Command spatialize renders an audio file binaurally through the
// processing pipeline and writes a stereo WAV or AIFF file.
//
// Usage:
//
//	spatialize [flags] input output
//
// The input may be WAV, AIFF, MP3 or Ogg Vorbis. Its channel count and
// sample rate override the configuration; -rate converts the input to
// another rate first, which also admits inputs below 44.1 kHz.
//
// Examples:
//
//	spatialize voice.wav voice-binaural.wav
//	spatialize -azimuth 60 -distance 1.5 voice.wav out.wav
//	spatialize -config room.yaml -correct music.mp3 out.aiff
//	spatialize -quality premium -yaw 30 -gain -3 music.ogg out.wav
//	spatialize -rate 48000 speech-22k.wav out.wav
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/pipeline"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
	"github.com/cwbudde/algo-spatial/internal/pcmio"
	"github.com/cwbudde/algo-spatial/measure/ir"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		os.Exit(1)
	}
}

type options struct {
	config   string
	quality  string
	bitDepth int
	rate     int
	gainDB   float64
	azimuth  float64
	distance float64
	yaw      float64
	correct  bool
	parallel bool
	logLevel string
	progress bool
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	opt := options{azimuth: math.NaN()}

	fs := flag.NewFlagSet("spatialize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opt.config, "config", "", "YAML pipeline configuration")
	fs.StringVar(&opt.quality, "quality", "", "HRTF quality: standard, high or premium")
	fs.IntVar(&opt.bitDepth, "bits", 0, "output bit depth: 16, 24 or 32")
	fs.IntVar(&opt.rate, "rate", 0, "processing and output sample rate; 0 keeps the input rate")
	fs.Float64Var(&opt.gainDB, "gain", 0, "stage gain in dB")
	fs.Float64Var(&opt.azimuth, "azimuth", math.NaN(), "rotate the source layout to this azimuth in degrees, positive right")
	fs.Float64Var(&opt.distance, "distance", 0, "source distance in metres")
	fs.Float64Var(&opt.yaw, "yaw", 0, "head yaw in degrees, positive right")
	fs.BoolVar(&opt.correct, "correct", false, "apply room correction derived from the room model")
	fs.BoolVar(&opt.parallel, "parallel", false, "render sources concurrently")
	fs.StringVar(&opt.logLevel, "log-level", "warning", "log level")
	fs.BoolVar(&opt.progress, "progress", true, "show progress when stderr is a terminal")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: spatialize [flags] input output\n\n")
		fmt.Fprintf(stderr, "Renders an audio file binaurally and writes a stereo WAV or AIFF file.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  spatialize -azimuth 60 voice.wav out.wav\n")
		fmt.Fprintf(stderr, "  spatialize -config room.yaml -correct music.mp3 out.aiff\n")
		fmt.Fprintf(stderr, "  spatialize -rate 48000 speech-22k.wav out.wav\n")
	}

	if err := fs.Parse(args); err != nil {
		return opt, nil, err
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return opt, nil, errors.New("want an input and an output file")
	}

	return opt, fs.Args(), nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opt, files, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(stderr)

	level, err := logrus.ParseLevel(opt.logLevel)
	if err != nil {
		return err
	}

	log.SetLevel(level)

	file, err := pcmio.Open(files[0])
	if err != nil {
		return err
	}
	defer file.Close()

	src, err := withRate(file, opt.rate)
	if err != nil {
		return err
	}

	cfg, err := configure(opt, src)
	if err != nil {
		return err
	}

	o, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	if err := apply(o, opt); err != nil {
		return err
	}

	sink, err := pcmio.Create(files[1], src.SampleRate(), cfg.BitDepth, 2)
	if err != nil {
		return err
	}

	frames, err := render(o, src, sink, progressWriter(opt, stderr))
	if err = errors.Join(err, sink.Close()); err != nil {
		return err
	}

	if _, err := o.MeasureTHDN(); err != nil {
		log.WithError(err).Warn("THD+N measurement failed")
	}

	var acoustics *ir.Metrics
	if m, err := o.RoomModel().Acoustics(cfg.SampleRate); err != nil {
		log.WithError(err).Warn("room analysis failed")
	} else {
		acoustics = &m
	}

	printSummary(stdout, o, frames, cfg.SampleRate, acoustics)

	return nil
}

// configure loads the configuration and adapts it to the input stream and
// the flags.
func configure(opt options, src pcmio.Source) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	if opt.config != "" {
		var err error
		if cfg, err = pipeline.LoadConfigFile(opt.config); err != nil {
			return cfg, err
		}
	}

	cfg.SampleRate = float64(src.SampleRate())

	if cfg.ChannelCount != src.Channels() {
		cfg.ChannelCount = src.Channels()
		cfg.Sources = nil
	}

	if opt.quality != "" {
		cfg.HRTFQuality = opt.quality
	}

	if opt.bitDepth != 0 {
		cfg.BitDepth = opt.bitDepth
	}

	if opt.parallel {
		cfg.ParallelSources = true
	}

	return cfg, cfg.Validate()
}

// apply sets the runtime parameters given on the command line.
func apply(o *pipeline.Orchestrator, opt options) error {
	if err := o.SetGainDB(opt.gainDB); err != nil {
		return err
	}

	if !math.IsNaN(opt.azimuth) || opt.distance > 0 {
		if err := placeSources(o, opt.azimuth, opt.distance); err != nil {
			return err
		}
	}

	if opt.yaw != 0 {
		o.HeadTracker().Publish(spatial.Orientation{
			Rotation: spatial.FromYawPitchRoll(opt.yaw*math.Pi/180, 0, 0),
		})
	}

	if opt.correct {
		// A rejected correction is logged by the orchestrator and leaves
		// the response flat.
		if _, err := o.ProposeCorrection(nil); err != nil && !errors.Is(err, core.ErrQualityThresholdExceeded) {
			return err
		}
	}

	return nil
}

// placeSources rotates the layout so that its centre points at azimuth
// and rescales every source to distance. NaN keeps the azimuth, zero keeps
// the distances.
func placeSources(o *pipeline.Orchestrator, azimuth, distance float64) error {
	n := o.Config().ChannelCount
	positions := make([]spatial.Vec3, n)

	var centre float64

	for ch := range n {
		p, err := o.SourcePosition(ch)
		if err != nil {
			return err
		}

		positions[ch] = p
		az, _, _ := p.Spherical()
		centre += az / float64(n)
	}

	for ch, p := range positions {
		az, el, dist := p.Spherical()
		if !math.IsNaN(azimuth) {
			az += azimuth - centre
		}

		if distance > 0 {
			dist = distance
		}

		if err := o.SetSourcePosition(ch, spatial.FromSpherical(az, el, dist)); err != nil {
			return err
		}
	}

	return nil
}

// render streams src through o into sink and returns the number of frames
// written.
func render(o *pipeline.Orchestrator, src pcmio.Source, sink pcmio.Sink, progress io.Writer) (int, error) {
	cfg := o.Config()
	ch := cfg.ChannelCount

	in := make([]float64, cfg.BufferSize*ch)
	out := make([]float64, 2*cfg.BufferSize)
	total := 0

	for {
		n, readErr := readFrames(src, in)
		frames := n / ch

		if frames > 0 {
			if err := o.ProcessInterleaved(out[:2*frames], in[:frames*ch]); err != nil {
				return total, err
			}

			if err := sink.WriteSamples(out[:2*frames]); err != nil {
				return total, err
			}

			total += frames

			if progress != nil && total/cfg.BufferSize%64 == 0 {
				fmt.Fprintf(progress, "\r%8.1f s", float64(total)/cfg.SampleRate)
			}
		}

		switch {
		case errors.Is(readErr, io.EOF):
			if progress != nil {
				fmt.Fprintf(progress, "\r%8.1f s\n", float64(total)/cfg.SampleRate)
			}

			return total, nil
		case readErr != nil:
			return total, readErr
		}
	}
}

// readFrames fills buf completely unless the stream ends first.
func readFrames(src pcmio.Source, buf []float64) (int, error) {
	filled := 0

	for filled < len(buf) {
		n, err := src.ReadSamples(buf[filled:])
		filled += n

		if err != nil {
			return filled, err
		}

		if n == 0 {
			return filled, io.EOF
		}
	}

	return filled, nil
}

func progressWriter(opt options, stderr io.Writer) io.Writer {
	if !opt.progress {
		return nil
	}

	f, ok := stderr.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}

	return f
}

func printSummary(w io.Writer, o *pipeline.Orchestrator, frames int, sr float64, room *ir.Metrics) {
	m := o.Metrics()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Duration\t%.2f s\n", float64(frames)/sr)
	fmt.Fprintf(tw, "Buffers\t%d\n", m.BuffersProcessed)
	fmt.Fprintf(tw, "Latency avg / peak\t%.3f / %.3f ms\n", m.AverageLatencyMs, m.PeakLatencyMs)
	fmt.Fprintf(tw, "Overruns (fatal)\t%d (%d)\n", m.Overruns, m.FatalOverruns)
	fmt.Fprintf(tw, "Bypass transitions\t%d\n", m.BypassTransitions)
	fmt.Fprintf(tw, "Stage failures\t%d\n", m.StageFailures)
	fmt.Fprintf(tw, "THD+N\t%.6f %%\n", m.THDPlusNoise)
	fmt.Fprintf(tw, "Harmonics / noise\t%.6f / %.6f %%\n", m.HarmonicDistortion, m.ResidualNoise)
	if room != nil {
		fmt.Fprintf(tw, "Room C80 / D50\t%.1f dB / %.2f\n", room.C80, room.D50)
		if room.RT60 > 0 {
			fmt.Fprintf(tw, "Room RT60\t%.2f s\n", room.RT60)
		}
	}
	tw.Flush()
}
