package loglik

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
)

const smallDiff = 1e-9

const log1 = `
Iteration=0, Marginal Likelihood=-1.2e+00, delta Marginal Likelihood=0.1
Marginal Likelihood = -0.9834567
Iteration=10, Marginal Likelihood=-9.1e-01, delta Marginal Likelihood=0.01
  Marginal Likelihood = -0.9012345
Total time = 12.3 seconds
`

func TestParseLast(tst *testing.T) {
	v, err := Parse(strings.NewReader(log1))
	if err != nil {
		tst.Fatal("Error parsing log:", err)
	}
	if math.Abs(v-(-0.9012345)) > smallDiff {
		tst.Error("Expected the last value, got:", v)
	}
}

func TestTrace(tst *testing.T) {
	values, err := Trace(strings.NewReader(log1))
	if err != nil {
		tst.Fatal("Error parsing log:", err)
	}
	if len(values) != 2 {
		tst.Fatal("Wrong number of values:", values)
	}
	if math.Abs(values[0]-(-0.9834567)) > smallDiff {
		tst.Error("Wrong first value:", values[0])
	}
}

func TestParseNotFound(tst *testing.T) {
	_, err := Parse(strings.NewReader("Iteration=0, Marginal Likelihood=-1.2\nnothing here\n"))
	if !errors.Is(err, ErrNotFound) {
		tst.Error("Expected ErrNotFound, got:", err)
	}
}

func TestParseMalformed(tst *testing.T) {
	_, err := Parse(strings.NewReader("Marginal Likelihood = -1.0\nMarginal Likelihood = oops\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		tst.Error("Expected an error on line 2, got:", err)
	}
}

func TestParseNotFinite(tst *testing.T) {
	for _, v := range []string{"nan", "NaN", "inf", "-Inf", "+inf"} {
		_, err := Parse(strings.NewReader("Marginal Likelihood = -1.0\nMarginal Likelihood = " + v + "\n"))
		if !errors.Is(err, ErrNotFinite) {
			tst.Errorf("Expected ErrNotFinite for %q, got: %v", v, err)
		}
		if err != nil && !strings.Contains(err.Error(), "line 2") {
			tst.Error("Error does not name the line:", err)
		}
	}
}

func TestReadFile(tst *testing.T) {
	dir := tst.TempDir()
	fn := filepath.Join(dir, "faststructure_K2.2.log")
	if err := os.WriteFile(fn, []byte(log1), 0666); err != nil {
		tst.Fatal(err)
	}
	v, err := ReadFile(fn)
	if err != nil {
		tst.Fatal("Error reading file:", err)
	}
	if math.Abs(v-(-0.9012345)) > smallDiff {
		tst.Error("Wrong value:", v)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.log"))
	if !errors.Is(err, os.ErrNotExist) {
		tst.Error("Expected a missing file error, got:", err)
	}
}

func TestReadGzipFile(tst *testing.T) {
	fn := filepath.Join(tst.TempDir(), "faststructure_K2.2.log.gz")
	f, err := os.Create(fn)
	if err != nil {
		tst.Fatal(err)
	}
	w := pgzip.NewWriter(f)
	if _, err := w.Write([]byte(log1)); err != nil {
		tst.Fatal(err)
	}
	if err := w.Close(); err != nil {
		tst.Fatal(err)
	}
	f.Close()

	v, err := ReadFile(fn)
	if err != nil {
		tst.Fatal("Error reading compressed file:", err)
	}
	if math.Abs(v-(-0.9012345)) > smallDiff {
		tst.Error("Wrong value:", v)
	}
}
