package choosek

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/floats"

	"bitbucket.org/admixk/admixk/loglik"
	"bitbucket.org/admixk/admixk/qmatrix"
	"bitbucket.org/admixk/admixk/runcache"
)

var (
	// ErrNoLikelihood is returned if no likelihood was extracted.
	ErrNoLikelihood = errors.New("no marginal likelihoods extracted")
	// ErrNoBestK is returned if no meanQ file was usable.
	ErrNoBestK = errors.New("no usable meanQ files")
)

// Metric stores values extracted from a single run.
type Metric struct {
	K   int `json:"K"`
	Rep int `json:"rep"`
	// Likelihood is the final marginal likelihood (LLBO).
	Likelihood    float64 `json:"likelihood"`
	HasLikelihood bool    `json:"hasLikelihood"`
	// BestK is the number of components used to explain the
	// structure (K_phi_star), zero if unknown.
	BestK int `json:"bestK,omitempty"`
}

// Complete returns true if both values were extracted.
func (m Metric) Complete() bool {
	return m.HasLikelihood && m.BestK > 0
}

// Result is the model complexity choice.
type Result struct {
	// MaxLikelihoodK is K maximizing the marginal likelihood.
	MaxLikelihoodK int     `json:"maxLikelihoodK"`
	MaxLikelihood  float64 `json:"maxLikelihood"`
	// ModalBestK is the most frequent best K estimate.
	ModalBestK int `json:"modalBestK"`
	// NLikelihood and NBestK are the numbers of runs used.
	NLikelihood int `json:"nLikelihood"`
	NBestK      int `json:"nBestK"`
}

// extract fills in the metric values from the run files. Failures
// are logged and leave the value missing.
func extract(r *Run, cache *runcache.Cache) Metric {
	m := Metric{K: r.K, Rep: r.Rep}
	if r.LogFile != "" {
		v, err := cache.Likelihood(r.LogFile, loglik.ReadFile)
		if err != nil {
			log.Errorf("Error parsing likelihood: %v", err)
		} else {
			m.Likelihood = v
			m.HasLikelihood = true
		}
	}
	if r.MeanQFile != "" {
		k, err := cache.BestK(r.MeanQFile, qmatrix.BestKFile)
		if err != nil {
			log.Errorf("Error processing meanQ file: %v", err)
		} else {
			m.BestK = k
		}
	}
	log.Debugf("K=%d rep=%d lnL=%v (%v) bestK=%d", m.K, m.Rep, m.Likelihood, m.HasLikelihood, m.BestK)
	return m
}

// Collect extracts metrics for every run in the set.
func Collect(s *RunSet, cache *runcache.Cache) []Metric {
	metrics := make([]Metric, 0, len(s.Runs))
	for _, r := range s.Runs {
		metrics = append(metrics, extract(r, cache))
	}
	return metrics
}

// PerK returns a single complete metric for every K in [kmin, kmax].
// The first replicate having both files is used; K values without
// complete results are skipped.
func PerK(s *RunSet, kmin, kmax int, cache *runcache.Cache) []Metric {
	var metrics []Metric
	for k := kmin; k <= kmax; k++ {
		var run *Run
		for _, r := range s.Runs {
			if r.K == k && r.LogFile != "" && r.MeanQFile != "" {
				run = r
				break
			}
		}
		if run == nil {
			log.Warningf("Files for K=%d not found. Skipping.", k)
			continue
		}
		m := extract(run, cache)
		if !m.Complete() {
			log.Warningf("Incomplete results for K=%d. Skipping.", k)
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// Summarize chooses K maximizing the likelihood and the most
// frequent best K. In case of ties the first run (in K order)
// maximizing the likelihood and the smallest modal best K are
// reported.
func Summarize(metrics []Metric) (*Result, error) {
	var (
		ks     []int
		lnL    []float64
		counts []float64
	)
	res := &Result{}
	for _, m := range metrics {
		if m.HasLikelihood {
			ks = append(ks, m.K)
			lnL = append(lnL, m.Likelihood)
		}
		if m.BestK > 0 {
			for len(counts) <= m.BestK {
				counts = append(counts, 0)
			}
			counts[m.BestK]++
			res.NBestK++
		}
	}
	if len(lnL) == 0 {
		return nil, ErrNoLikelihood
	}
	if res.NBestK == 0 {
		return nil, ErrNoBestK
	}
	i := floats.MaxIdx(lnL)
	res.MaxLikelihoodK = ks[i]
	res.MaxLikelihood = lnL[i]
	res.NLikelihood = len(lnL)
	res.ModalBestK = floats.MaxIdx(counts)
	return res, nil
}

// WriteTable writes complete metrics as a comma separated table.
func WriteTable(w io.Writer, metrics []Metric) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# K,LLBO_Value,K_Phi_Star")
	for _, m := range metrics {
		if !m.Complete() {
			continue
		}
		fmt.Fprintf(bw, "%d,%.6f,%d\n", m.K, m.Likelihood, m.BestK)
	}
	return bw.Flush()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NumpyColumns is the number of columns written by WriteNumpy.
const NumpyColumns = 3

// WriteNumpy writes the metrics as a float64 numpy array with the
// columns K, likelihood (NaN if missing) and best K (0 if missing).
func WriteNumpy(w io.Writer, metrics []Metric) error {
	bw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bw})
	if err != nil {
		return fmt.Errorf("gonpy.NewWriter: %w", err)
	}
	data := make([]float64, 0, NumpyColumns*len(metrics))
	for _, m := range metrics {
		lnL := math.NaN()
		if m.HasLikelihood {
			lnL = m.Likelihood
		}
		data = append(data, float64(m.K), lnL, float64(m.BestK))
	}
	npw.Shape = []int{len(metrics), NumpyColumns}
	if err := npw.WriteFloat64(data); err != nil {
		return err
	}
	return bw.Flush()
}
