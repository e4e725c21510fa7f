// Package launch builds and runs fastStructure command lines, one
// per K value.
package launch

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("launch")

// Job is a single fastStructure execution.
type Job struct {
	// Binary is the structure.py path or name.
	Binary string
	K      int
	Seed   int64
	// Input is the input file (without extension for the str
	// format).
	Input string
	// Output is the output prefix; K is appended to it.
	Output string
	Format string
	// Full requests the full set of output files.
	Full bool
}

// SeedFor returns the seed of run K given the base seed.
func SeedFor(base int64, k int) int64 {
	return base + int64(k)
}

// Args returns the command-line arguments for the job.
func (j *Job) Args() (args []string) {
	args = append(args,
		"-K", strconv.Itoa(j.K),
		"--input="+j.Input,
		"--output="+j.Output+strconv.Itoa(j.K),
		"--format="+j.Format,
		"--seed="+strconv.FormatInt(j.Seed, 10),
	)
	if j.Full {
		args = append(args, "--full")
	}
	return
}

// String returns the command line.
func (j *Job) String() string {
	return j.Binary + " " + strings.Join(j.Args(), " ")
}

// Settings describe a range of jobs.
type Settings struct {
	Binary   string
	Input    string
	Output   string
	Format   string
	Full     bool
	KMin     int
	KMax     int
	BaseSeed int64
	// Task restricts the jobs to a single K (e.g. an array task
	// id); zero means all.
	Task int
}

// Jobs returns jobs for all the K values in the settings.
func Jobs(s *Settings) ([]*Job, error) {
	if s.KMin < 1 || s.KMax < s.KMin {
		return nil, fmt.Errorf("wrong K range: %d-%d", s.KMin, s.KMax)
	}
	if s.Task != 0 && (s.Task < s.KMin || s.Task > s.KMax) {
		return nil, fmt.Errorf("task %d is outside of K range %d-%d", s.Task, s.KMin, s.KMax)
	}
	var jobs []*Job
	for k := s.KMin; k <= s.KMax; k++ {
		if s.Task != 0 && k != s.Task {
			continue
		}
		jobs = append(jobs, &Job{
			Binary: s.Binary,
			K:      k,
			Seed:   SeedFor(s.BaseSeed, k),
			Input:  s.Input,
			Output: s.Output,
			Format: s.Format,
			Full:   s.Full,
		})
	}
	return jobs, nil
}

// Runner executes jobs.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a runner attached to the standard output and
// error.
func NewRunner() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run runs a single job.
func (r *Runner) Run(j *Job) error {
	log.Noticef("Starting fastStructure, K=%d, seed=%d", j.K, j.Seed)
	log.Debug(j.String())
	cmd := exec.Command(j.Binary, j.Args()...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("K=%d: %w", j.K, err)
	}
	log.Noticef("Finished K=%d", j.K)
	return nil
}

// RunAll runs the jobs one after another. Failed jobs do not stop the
// remaining ones; the returned error lists failed K values.
func (r *Runner) RunAll(jobs []*Job) error {
	var failed []string
	for _, j := range jobs {
		if err := r.Run(j); err != nil {
			log.Error(err)
			failed = append(failed, strconv.Itoa(j.K))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("fastStructure failed for K=%s", strings.Join(failed, ","))
	}
	return nil
}
