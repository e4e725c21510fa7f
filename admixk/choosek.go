package main

import (
	"fmt"
	"io"
	"os"

	"bitbucket.org/admixk/admixk/choosek"
	"bitbucket.org/admixk/admixk/runcache"
)

// chooseKSettings stores settings of the choosek command.
type chooseKSettings struct {
	tag    string
	tableF string
}

// newChooseKSettings creates chooseKSettings from the command line
// parameters (global variables).
func newChooseKSettings() *chooseKSettings {
	return &chooseKSettings{
		tag:    *chooseKTag,
		tableF: *chooseKTable,
	}
}

// writeTable writes a metrics table file.
func writeTable(fn string, metrics []choosek.Metric) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := choosek.WriteTable(f, metrics); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	sum.Files = append(sum.Files, fn)
	return nil
}

// chooseK reports K maximizing the likelihood and the modal number
// of components used. Nothing is printed if the choice fails.
func chooseK(s *chooseKSettings, cache *runcache.Cache, out io.Writer) error {
	set, err := choosek.Discover(s.tag)
	if err != nil {
		return err
	}
	log.Infof("K values: %v", set.Ks())

	metrics := choosek.Collect(set, cache)
	sum.Runs = metrics
	sum.Unreliable = !set.Reliable()

	res, err := choosek.Summarize(metrics)
	if err != nil {
		return err
	}
	sum.Result = res
	if res.NLikelihood != set.NLogs() || res.NBestK != set.NMeanQ() {
		log.Warningf("Used %d/%d likelihoods and %d/%d meanQ files",
			res.NLikelihood, set.NLogs(), res.NBestK, set.NMeanQ())
	}
	if !set.Reliable() {
		log.Warning("Some files were not matched to K, results may be unreliable")
	}

	if s.tableF != "" {
		if err := writeTable(s.tableF, metrics); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Model complexity that maximizes marginal likelihood = %d\n", res.MaxLikelihoodK)
	fmt.Fprintf(out, "Model components used to explain structure in data = %d\n", res.ModalBestK)
	return nil
}
