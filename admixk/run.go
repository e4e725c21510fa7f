package main

import (
	"fmt"
	"io"

	"bitbucket.org/admixk/admixk/launch"
)

// newRunSettings creates launch settings from the command line
// parameters (global variables).
func newRunSettings() *launch.Settings {
	return &launch.Settings{
		Binary:   *runBinary,
		Input:    *runInput,
		Output:   *runOutput,
		Format:   *runFormat,
		Full:     *runFull,
		KMin:     *runKMin,
		KMax:     *runKMax,
		BaseSeed: *runSeed,
		Task:     *runTask,
	}
}

// runFastStructure runs (or prints with --dry-run) the fastStructure
// jobs.
func runFastStructure(s *launch.Settings, dry bool, out io.Writer) error {
	jobs, err := launch.Jobs(s)
	if err != nil {
		return err
	}
	if dry {
		for _, j := range jobs {
			fmt.Fprintln(out, j)
		}
		return nil
	}
	log.Infof("Input file: %s", s.Input)
	return launch.NewRunner().RunAll(jobs)
}
