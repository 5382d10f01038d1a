// Command hrtfinfo prints the grid and interaural cues of an HRTF database.
//
// Usage:
//
//	hrtfinfo [flags]
//
// Without -db it synthesizes the spherical head model database at -rate.
//
// Examples:
//
//	hrtfinfo
//	hrtfinfo -rate 96000 -elevation 30 -distance 0.5
//	hrtfinfo -step 15 -quality premium
//	hrtfinfo -write head.yaml
//	hrtfinfo -db head.yaml
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
	"github.com/cwbudde/algo-spatial/dsp/spatial"
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
	rate      float64
	dbPath    string
	writePath string
	elevation float64
	distance  float64
	step      float64
	quality   string
}

func run(args []string, stdout, stderr io.Writer) error {
	var opt options

	fs := flag.NewFlagSet("hrtfinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64Var(&opt.rate, "rate", core.DefaultSampleRate, "sample rate of the synthesized database")
	fs.StringVar(&opt.dbPath, "db", "", "read a YAML database instead of synthesizing one")
	fs.StringVar(&opt.writePath, "write", "", "write the database as YAML to this file")
	fs.Float64Var(&opt.elevation, "elevation", 0, "elevation in degrees")
	fs.Float64Var(&opt.distance, "distance", 1, "source distance in metres")
	fs.Float64Var(&opt.step, "step", 30, "azimuth step of the table in degrees")
	fs.StringVar(&opt.quality, "quality", "high", "interpolation quality: standard, high or premium")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hrtfinfo [flags]\n\n")
		fmt.Fprintf(stderr, "Prints the grid and interaural level and time differences of an HRTF database.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  hrtfinfo -rate 96000 -elevation 30\n")
		fmt.Fprintf(stderr, "  hrtfinfo -write head.yaml\n")
		fmt.Fprintf(stderr, "  hrtfinfo -db head.yaml -step 15\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	q, err := spatial.ParseQuality(opt.quality)
	if err != nil {
		return err
	}

	if !(opt.step > 0 && opt.step <= 180) {
		return fmt.Errorf("step %g outside (0, 180]", opt.step)
	}

	db, err := loadDatabase(opt)
	if err != nil {
		return err
	}

	if opt.writePath != "" {
		if err := writeDatabase(db, opt.writePath); err != nil {
			return err
		}
	}

	rows, err := analyze(db, q, opt.elevation, opt.distance, opt.step)
	if err != nil {
		return err
	}

	printGrid(stdout, db.Grid())
	fmt.Fprintln(stdout)
	printTable(stdout, rows, db.Grid().SampleRate)

	return nil
}

func loadDatabase(opt options) (*spatial.Database, error) {
	if opt.dbPath == "" {
		return spatial.NewSphericalHeadModel(opt.rate).Database(spatial.DefaultGrid(opt.rate))
	}

	f, err := os.Open(opt.dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return spatial.LoadDatabase(f)
}

func writeDatabase(db *spatial.Database, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	return errors.Join(db.WriteYAML(f), f.Close())
}

// row holds the interaural cues for one direction. ILD is the right ear
// level minus the left ear level; ITD is positive when the right ear leads.
type row struct {
	Azimuth    float64
	ILD        float64
	ITD        float64 // seconds
	DelayLeft  float64 // samples
	DelayRight float64 // samples
	PeakLeft   float64
	PeakRight  float64
}

func analyze(db *spatial.Database, q spatial.Quality, el, dist, step float64) ([]row, error) {
	sr := db.Grid().SampleRate
	set := spatial.NewCoefficientSet(db.Grid().Length)

	var rows []row

	for az := -180.0; az < 180-1e-9; az += step {
		if err := db.Lookup(az, el, dist, q, &set); err != nil {
			return nil, err
		}

		rows = append(rows, row{
			Azimuth:    az,
			ILD:        levelDB(set.Right) - levelDB(set.Left),
			ITD:        (set.DelayLeft - set.DelayRight) / sr,
			DelayLeft:  set.DelayLeft,
			DelayRight: set.DelayRight,
			PeakLeft:   peakDB(set.Left),
			PeakRight:  peakDB(set.Right),
		})
	}

	return rows, nil
}

func printGrid(w io.Writer, g spatial.Grid) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Sample rate\t%g Hz\n", g.SampleRate)
	fmt.Fprintf(tw, "Azimuth step\t%g deg (%d)\n", g.AzimuthStep, g.Azimuths())
	fmt.Fprintf(tw, "Elevations\t%v deg\n", g.Elevations)
	fmt.Fprintf(tw, "Distances\t%v m\n", g.Distances)
	fmt.Fprintf(tw, "Taps\t%d\n", g.Length)
	fmt.Fprintf(tw, "Points\t%d\n", g.Size())
	tw.Flush()
}

func printTable(w io.Writer, rows []row, sr float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Azimuth\tILD (dB)\tITD (us)\tDelay L\tDelay R\tPeak L (dB)\tPeak R (dB)\t\n")
	fmt.Fprintf(tw, "-------\t--------\t--------\t-------\t-------\t-----------\t-----------\t\n")

	for _, r := range rows {
		fmt.Fprintf(tw, "%.0f\t%.2f\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			r.Azimuth, r.ILD, r.ITD*1e6, r.DelayLeft, r.DelayRight, r.PeakLeft, r.PeakRight)
	}

	tw.Flush()
	fmt.Fprintf(w, "\nDelays in samples at %g Hz.\n", sr)
}

func levelDB(ir []float64) float64 {
	var e float64
	for _, v := range ir {
		e += v * v
	}

	return core.LinearPowerToDB(e)
}

func peakDB(ir []float64) float64 {
	var p float64
	for _, v := range ir {
		p = max(p, math.Abs(v))
	}

	return 20 * math.Log10(p)
}
