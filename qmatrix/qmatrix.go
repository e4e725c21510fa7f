// Package qmatrix reads admixture proportion matrices (meanQ files)
// and estimates the number of ancestry components they actually use.
package qmatrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
	"gonum.org/v1/gonum/floats"

	"bitbucket.org/admixk/admixk/zfile"
)

var log = logging.MustGetLogger("qmatrix")

// ErrEmpty is returned for a matrix without rows.
var ErrEmpty = errors.New("empty proportions matrix")

// Matrix is an N×K matrix of ancestry proportions, one row per
// individual and one column per component.
type Matrix struct {
	d *mat64.Dense
}

// New creates a matrix from rows. All the rows should have the same
// length.
func New(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	k := len(rows[0])
	data := make([]float64, 0, len(rows)*k)
	for i, row := range rows {
		if len(row) != k {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i+1, len(row), k)
		}
		data = append(data, row...)
	}
	return &Matrix{mat64.NewDense(len(rows), k, data)}, nil
}

// Read parses whitespace separated values, one row per line. Empty
// lines are skipped.
func Read(rd io.Reader) (*Matrix, error) {
	var data []float64
	n, k := 0, 0
	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if k == 0 {
			k = len(fields)
		} else if len(fields) != k {
			return nil, fmt.Errorf("line %d: %d columns, expected %d", lineNo, len(fields), k)
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			data = append(data, v)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmpty
	}
	return &Matrix{mat64.NewDense(n, k, data)}, nil
}

// ReadFile reads a matrix from a meanQ file, gzipped if the name
// ends with ".gz".
func ReadFile(fn string) (*Matrix, error) {
	f, err := zfile.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	log.Debugf("%s: %d individuals, %d components", fn, m.Individuals(), m.Components())
	return m, nil
}

// Dims returns the number of individuals and components.
func (m *Matrix) Dims() (n, k int) {
	return m.d.Dims()
}

// Individuals returns the number of rows.
func (m *Matrix) Individuals() int {
	n, _ := m.d.Dims()
	return n
}

// Components returns the number of columns.
func (m *Matrix) Components() int {
	_, k := m.d.Dims()
	return k
}

// At returns the proportion of component j in individual i.
func (m *Matrix) At(i, j int) float64 {
	return m.d.At(i, j)
}

// Row returns a copy of the proportions of individual i.
func (m *Matrix) Row(i int) []float64 {
	return mat64.Row(nil, i, m.d)
}

// Column returns a copy of the proportions of component j across
// all the individuals.
func (m *Matrix) Column(j int) []float64 {
	return mat64.Col(nil, j, m.d)
}

// Copy returns a deep copy of the matrix.
func (m *Matrix) Copy() *Matrix {
	return &Matrix{mat64.DenseCopyOf(m.d)}
}

// CheckComponents returns an error if the number of columns differs
// from k.
func (m *Matrix) CheckComponents(k int) error {
	if c := m.Components(); c != k {
		return fmt.Errorf("expected %d columns in proportions matrix, found %d", k, c)
	}
	return nil
}

// Normalize scales every row to sum to one. A row summing to zero
// is left as zeros.
func (m *Matrix) Normalize() {
	n, _ := m.d.Dims()
	for i := 0; i < n; i++ {
		row := m.d.RawRowView(i)
		s := floats.Sum(row)
		if s == 0 {
			s = 1
		}
		floats.Scale(1/s, row)
	}
}

// ComponentMass returns the total proportion of every component over
// all the individuals (column sums).
func (m *Matrix) ComponentMass() []float64 {
	_, k := m.d.Dims()
	mass := make([]float64, k)
	col := make([]float64, m.Individuals())
	for j := range mass {
		mass[j] = floats.Sum(mat64.Col(col, j, m.d))
	}
	return mass
}

// Permute returns a new matrix with rows taken in the given order.
func (m *Matrix) Permute(order []int) (*Matrix, error) {
	n, k := m.d.Dims()
	if len(order) != n {
		return nil, fmt.Errorf("permutation of length %d for %d rows", len(order), n)
	}
	p := mat64.NewDense(n, k, nil)
	for i, src := range order {
		if src < 0 || src >= n {
			return nil, fmt.Errorf("row index %d out of range", src)
		}
		p.SetRow(i, m.d.RawRowView(src))
	}
	return &Matrix{p}, nil
}

// BestK returns the smallest number of components, ranked by their
// total mass, whose cumulative mass reaches all but one individual
// worth of assignment (N-1). The matrix itself is not modified.
func (m *Matrix) BestK() int {
	q := m.Copy()
	q.Normalize()
	n := q.Individuals()

	mass := q.ComponentMass()
	sort.Sort(sort.Reverse(sort.Float64Slice(mass)))
	cum := floats.CumSum(make([]float64, len(mass)), mass)

	thr := float64(n - 1)
	bestK := 1
	for _, c := range cum {
		if c < thr {
			bestK++
		}
	}
	return bestK
}

// BestKFile reads a meanQ file and returns its best K estimate.
func BestKFile(fn string) (int, error) {
	m, err := ReadFile(fn)
	if err != nil {
		return 0, err
	}
	return m.BestK(), nil
}
