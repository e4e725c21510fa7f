// Package choosek selects the model complexity from a set of
// fastStructure runs.
package choosek

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/op/go-logging"

	"bitbucket.org/admixk/admixk/zfile"
)

var log = logging.MustGetLogger("choosek")

var (
	// ErrNoLogs is returned when no log files match the file tag.
	ErrNoLogs = errors.New("no log files found")
	// ErrNoMeanQ is returned when no meanQ files match the file tag.
	ErrNoMeanQ = errors.New("no meanQ files found")
)

// runName matches file names like faststructure_K5.5.log or
// faststructure_K5.5.meanQ.gz.
var runName = regexp.MustCompile(`K(\d+)\.(\d+)\.(log|meanQ)(\.gz)?$`)

// ParseName extracts K and the replicate number from a run file
// name.
func ParseName(fn string) (k, rep int, ok bool) {
	m := runName.FindStringSubmatch(filepath.Base(fn))
	if m == nil {
		return 0, 0, false
	}
	k, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	rep, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return k, rep, true
}

// Run is a single fastStructure run. Either file may be missing.
type Run struct {
	K         int
	Rep       int
	LogFile   string
	MeanQFile string
}

// RunSet is a set of runs found for a file tag.
type RunSet struct {
	Tag  string
	Runs []*Run
	// Unmatched are files without K in their names.
	Unmatched []string
}

// Reliable returns false if some of the files could not be assigned
// to a run.
func (s *RunSet) Reliable() bool {
	return len(s.Unmatched) == 0
}

// NLogs returns the number of runs with a log file.
func (s *RunSet) NLogs() (n int) {
	for _, r := range s.Runs {
		if r.LogFile != "" {
			n++
		}
	}
	return
}

// NMeanQ returns the number of runs with a meanQ file.
func (s *RunSet) NMeanQ() (n int) {
	for _, r := range s.Runs {
		if r.MeanQFile != "" {
			n++
		}
	}
	return
}

// Ks returns the sorted distinct K values.
func (s *RunSet) Ks() (ks []int) {
	for _, r := range s.Runs {
		if len(ks) == 0 || ks[len(ks)-1] != r.K {
			ks = append(ks, r.K)
		}
	}
	return
}

// glob returns the sorted list of files matching the pattern, either
// plain or gzipped.
func glob(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	gz, err := filepath.Glob(pattern + zfile.Ext)
	if err != nil {
		return nil, err
	}
	files = append(files, gz...)
	sort.Strings(files)
	return files, nil
}

// NewRunSet groups log and meanQ files into runs by K and
// replicate. Runs are sorted by K, then by replicate.
func NewRunSet(tag string, logFiles, meanQFiles []string) *RunSet {
	type id struct{ k, rep int }
	s := &RunSet{Tag: tag}
	runs := make(map[id]*Run)
	get := func(k, rep int) *Run {
		r, ok := runs[id{k, rep}]
		if !ok {
			r = &Run{K: k, Rep: rep}
			runs[id{k, rep}] = r
			s.Runs = append(s.Runs, r)
		}
		return r
	}

	for _, fn := range logFiles {
		k, rep, ok := ParseName(fn)
		if !ok {
			log.Warningf("Cannot extract K from %s", fn)
			s.Unmatched = append(s.Unmatched, fn)
			continue
		}
		r := get(k, rep)
		if r.LogFile != "" {
			log.Warningf("Both %s and %s found, using the latter", r.LogFile, fn)
		}
		r.LogFile = fn
	}
	for _, fn := range meanQFiles {
		k, rep, ok := ParseName(fn)
		if !ok {
			log.Warningf("Cannot extract K from %s", fn)
			s.Unmatched = append(s.Unmatched, fn)
			continue
		}
		r := get(k, rep)
		if r.MeanQFile != "" {
			log.Warningf("Both %s and %s found, using the latter", r.MeanQFile, fn)
		}
		r.MeanQFile = fn
	}

	sort.Slice(s.Runs, func(i, j int) bool {
		if s.Runs[i].K != s.Runs[j].K {
			return s.Runs[i].K < s.Runs[j].K
		}
		return s.Runs[i].Rep < s.Runs[j].Rep
	})
	return s
}

// Discover finds log (tag*.log) and meanQ (tag*.meanQ) files for the
// file tag.
func Discover(tag string) (*RunSet, error) {
	logFiles, err := glob(tag + "*.log")
	if err != nil {
		return nil, err
	}
	if len(logFiles) == 0 {
		return nil, fmt.Errorf("%w matching pattern %s*.log", ErrNoLogs, tag)
	}
	meanQFiles, err := glob(tag + "*.meanQ")
	if err != nil {
		return nil, err
	}
	if len(meanQFiles) == 0 {
		return nil, fmt.Errorf("%w matching pattern %s*.meanQ", ErrNoMeanQ, tag)
	}
	log.Infof("Found %d log files and %d meanQ files for %s", len(logFiles), len(meanQFiles), tag)

	s := NewRunSet(tag, logFiles, meanQFiles)
	if len(s.Runs) == 0 {
		return nil, fmt.Errorf("could not extract K values from files matching %s", tag)
	}
	if !s.Reliable() {
		log.Warningf("%d files without K in their names, results may be unreliable", len(s.Unmatched))
	}
	return s, nil
}
