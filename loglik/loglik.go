// Package loglik extracts marginal likelihood estimates from the
// fastStructure run logs.
package loglik

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/admixk/admixk/zfile"
)

// Marker is the prefix of a log line reporting the marginal
// likelihood.
const Marker = "Marginal Likelihood = "

var log = logging.MustGetLogger("loglik")

var (
	// ErrNotFound is returned when no marker line is present.
	ErrNotFound = errors.New("marginal likelihood not found")
	// ErrNotFinite is returned for a NaN or infinite likelihood,
	// reported by diverged runs.
	ErrNotFinite = errors.New("marginal likelihood is not finite")
)

// parseLine returns the value reported by a marker line. ok is false
// if the line is not a marker line.
func parseLine(line string) (v float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Marker) {
		return 0, false, nil
	}
	i := strings.IndexByte(line, '=')
	v, err = strconv.ParseFloat(strings.TrimSpace(line[i+1:]), 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("%w: %v", ErrNotFinite, v)
	}
	return v, true, err
}

// Trace returns all the marginal likelihood values in the order
// they appear in the log.
func Trace(rd io.Reader) (values []float64, err error) {
	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		v, ok, err := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if err != nil {
			return values, fmt.Errorf("line %d: %w", lineNo, err)
		}
		values = append(values, v)
	}
	return values, scanner.Err()
}

// Parse returns the last reported marginal likelihood. Earlier
// values are intermediate estimates and are ignored.
func Parse(rd io.Reader) (float64, error) {
	values, err := Trace(rd)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, ErrNotFound
	}
	log.Debugf("%d marginal likelihood lines, last=%v", len(values), values[len(values)-1])
	return values[len(values)-1], nil
}

// ReadFile parses a log file, gzipped if the name ends with ".gz".
func ReadFile(fn string) (float64, error) {
	f, err := zfile.Open(fn)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	v, err := Parse(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fn, err)
	}
	return v, nil
}
