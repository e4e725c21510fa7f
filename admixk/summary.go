package main

import (
	"encoding/json"
	"os"

	"bitbucket.org/admixk/admixk/choosek"
	"bitbucket.org/admixk/admixk/runcache"
)

// Summary is storing admixk run summary information.
type Summary struct {
	// Version stores admixk version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Command is the subcommand name.
	Command string `json:"command"`
	// Runs are the metrics extracted from every run.
	Runs []choosek.Metric `json:"runs,omitempty"`
	// Result is the model complexity choice.
	Result *choosek.Result `json:"result,omitempty"`
	// Unreliable is set if some of the files could not be matched
	// to a K value.
	Unreliable bool `json:"unreliable,omitempty"`
	// Files are the files written.
	Files []string `json:"files,omitempty"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}

// sum contains the run summary
var sum Summary

// saveJSON writes the summary if the file name is not empty.
func saveJSON(fn string) {
	if fn == "" {
		return
	}
	j, err := json.Marshal(sum)
	if err != nil {
		log.Error(err)
		return
	}
	log.Debug(string(j))
	f, err := os.Create(fn)
	if err != nil {
		log.Error("Error creating json output file:", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(j); err != nil {
		log.Error("Error writing json output file:", err)
	}
}

// openCache opens the run cache; no file name means no cache.
func openCache(fn string) (*runcache.Cache, error) {
	if fn == "" {
		return nil, nil
	}
	return runcache.Open(fn)
}
