package main

import (
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/admixk/admixk/admixplot"
	"bitbucket.org/admixk/admixk/choosek"
	"bitbucket.org/admixk/admixk/runcache"
)

// metricsSettings stores settings of the metrics command.
type metricsSettings struct {
	tag        string
	kmin, kmax int
	outF       string
	npyF       string
	lnLPlotF   string
	bestKPlotF string
}

// newMetricsSettings creates metricsSettings from the command line
// parameters (global variables).
func newMetricsSettings() *metricsSettings {
	return &metricsSettings{
		tag:        *metricsTag,
		kmin:       *metricsKMin,
		kmax:       *metricsKMax,
		outF:       *metricsOut,
		npyF:       *metricsNpy,
		lnLPlotF:   *metricsLnLF,
		bestKPlotF: *metricsBestF,
	}
}

// writeNumpy writes the metrics to a numpy file.
func writeNumpy(fn string, metrics []choosek.Metric) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := choosek.WriteNumpy(f, metrics); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("Numpy array saved to %s", fn)
	sum.Files = append(sum.Files, fn)
	return nil
}

// compileMetrics writes a table with a single run per K.
func compileMetrics(s *metricsSettings, cache *runcache.Cache, out io.Writer) error {
	set, err := choosek.Discover(s.tag)
	if err != nil {
		return err
	}
	metrics := choosek.PerK(set, s.kmin, s.kmax, cache)
	if len(metrics) == 0 {
		return fmt.Errorf("no complete results for K=%d..%d", s.kmin, s.kmax)
	}
	sum.Runs = metrics

	if err := writeTable(s.outF, metrics); err != nil {
		return err
	}
	fmt.Fprintf(out, "Metrics compiled and saved to %s\n", s.outF)
	if s.npyF != "" {
		if err := writeNumpy(s.npyF, metrics); err != nil {
			return err
		}
	}

	if s.lnLPlotF == "" && s.bestKPlotF == "" {
		return nil
	}
	lnL, bestK, err := admixplot.Metrics(metrics)
	if err != nil {
		return err
	}
	for _, pf := range []struct {
		p  *plot.Plot
		fn string
	}{{lnL, s.lnLPlotF}, {bestK, s.bestKPlotF}} {
		if pf.fn == "" {
			continue
		}
		if err := admixplot.Save(pf.p, 5*vg.Inch, 4*vg.Inch, pf.fn); err != nil {
			return fmt.Errorf("error saving plot: %w", err)
		}
		sum.Files = append(sum.Files, pf.fn)
	}
	return nil
}
