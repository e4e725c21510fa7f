package main

import (
	"fmt"

	"gonum.org/v1/plot/vg"

	"bitbucket.org/admixk/admixk/admixplot"
	"bitbucket.org/admixk/admixk/geo"
	"bitbucket.org/admixk/admixk/qmatrix"
)

// plotSettings stores settings of the plot command.
type plotSettings struct {
	k       int
	tag     string
	meanQF  string
	labelsF string
	grouped bool
	groupsF string
	colors  []string
	outF    string
}

// newPlotSettings creates plotSettings from the command line
// parameters (global variables).
func newPlotSettings() *plotSettings {
	return &plotSettings{
		k:       *plotK,
		tag:     *plotTag,
		meanQF:  *plotMeanQ,
		labelsF: *plotLabels,
		grouped: *plotGrouped || *plotGroups != "",
		groupsF: *plotGroups,
		colors:  *plotColors,
		outF:    *plotOut,
	}
}

// meanQFile returns the meanQ file name, runs are named
// <tag><k>.<k>.meanQ.
func (s *plotSettings) meanQFile() string {
	if s.meanQF != "" {
		return s.meanQF
	}
	return fmt.Sprintf("%s%d.%d.meanQ", s.tag, s.k, s.k)
}

// outFile returns the plot file name.
func (s *plotSettings) outFile() string {
	switch {
	case s.outF != "":
		return s.outF
	case s.grouped:
		return fmt.Sprintf("Admixture_County_Order_K%d.pdf", s.k)
	}
	return fmt.Sprintf("Admixture_K%d.pdf", s.k)
}

// grouping returns the grouping rules.
func (s *plotSettings) grouping() (*geo.Grouping, error) {
	if s.groupsF == "" {
		return geo.Default(), nil
	}
	return geo.LoadGrouping(s.groupsF)
}

// plotProportions plots the ancestry proportions of a single run.
func plotProportions(s *plotSettings) error {
	fn := s.meanQFile()
	log.Noticef("Reading Q-matrix from: %s (K=%d)", fn, s.k)
	q, err := qmatrix.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := q.CheckComponents(s.k); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	log.Infof("Read Q-data for %d samples", q.Individuals())

	labels, err := geo.ReadLabels(s.labelsF)
	if err != nil {
		return err
	}

	opt := admixplot.Options{K: s.k}
	for _, c := range s.colors {
		col, err := admixplot.ParseColor(c)
		if err != nil {
			return err
		}
		opt.Colors = append(opt.Colors, col)
	}
	if len(opt.Colors) > 0 && len(opt.Colors) < s.k {
		log.Warningf("%d colors for %d components, using default colors for the rest", len(opt.Colors), s.k)
	}

	out := s.outFile()
	if !s.grouped {
		p, err := admixplot.Stacked(q, labels, opt)
		if err != nil {
			return err
		}
		err = admixplot.Save(p, admixplot.StackedWidth(len(labels)), 4*vg.Inch, out)
		if err != nil {
			return err
		}
	} else {
		g, err := s.grouping()
		if err != nil {
			return err
		}
		p, err := admixplot.Grouped(q, labels, g, opt)
		if err != nil {
			return err
		}
		if err := admixplot.Save(p, 10*vg.Inch, 6*vg.Inch, out); err != nil {
			return err
		}
	}
	sum.Files = append(sum.Files, out)
	return nil
}
