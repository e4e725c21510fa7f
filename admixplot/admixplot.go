// Package admixplot renders ancestry proportions as stacked bar
// plots.
package admixplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/op/go-logging"
	stdfnt "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"bitbucket.org/admixk/admixk/geo"
	"bitbucket.org/admixk/admixk/qmatrix"
)

var log = logging.MustGetLogger("admixplot")

// Options controls plot appearance.
type Options struct {
	// K is the number of components shown in the title.
	K int
	// Colors override the default component colors.
	Colors []color.Color
	// Title overrides the default title.
	Title string
}

// title returns the plot title.
func (o Options) title(suffix string) string {
	if o.Title != "" {
		return o.Title
	}
	return fmt.Sprintf("Admixture Plot (K=%d)%s", o.K, suffix)
}

// stack draws one stacked bar per individual, every component on
// top of the previous one.
type stack struct {
	q      *qmatrix.Matrix
	colors []color.Color
	// width is the bar width in data units.
	width float64
}

// Plot implements the plot.Plotter interface.
func (s *stack) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	n, k := s.q.Dims()
	for i := 0; i < n; i++ {
		xMin := trX(float64(i) - s.width/2)
		xMax := trX(float64(i) + s.width/2)
		bottom := 0.0
		for j := 0; j < k; j++ {
			top := bottom + s.q.At(i, j)
			pts := []vg.Point{
				{X: xMin, Y: trY(bottom)},
				{X: xMin, Y: trY(top)},
				{X: xMax, Y: trY(top)},
				{X: xMax, Y: trY(bottom)},
			}
			c.FillPolygon(s.colors[j], c.ClipPolygonXY(pts))
			bottom = top
		}
	}
}

// DataRange implements the plot.DataRanger interface.
func (s *stack) DataRange() (xmin, xmax, ymin, ymax float64) {
	n, k := s.q.Dims()
	for i := 0; i < n; i++ {
		h := 0.0
		for j := 0; j < k; j++ {
			h += s.q.At(i, j)
		}
		ymax = math.Max(ymax, h)
	}
	return -s.width / 2, float64(n-1) + s.width/2, 0, ymax
}

// newStack checks the inputs and creates the bar plotter.
func newStack(q *qmatrix.Matrix, labels []string, opt Options, width float64) (*stack, error) {
	n, k := q.Dims()
	if n == 0 {
		return nil, errors.New("nothing to plot")
	}
	if len(labels) != n {
		return nil, fmt.Errorf("# of labels (%d) does not match # of samples in proportions matrix (%d)", len(labels), n)
	}
	if opt.K > 0 {
		if err := q.CheckComponents(opt.K); err != nil {
			return nil, err
		}
	}
	return &stack{q: q, colors: palette(k, opt.Colors), width: width}, nil
}

// sampleAxis puts vertical sample labels on the x axis.
func sampleAxis(p *plot.Plot, labels []string, size vg.Length) {
	p.NominalX(labels...)
	p.X.Tick.Label.Font.Size = size
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

// Stacked returns a stacked bar plot with individuals in the matrix
// order.
func Stacked(q *qmatrix.Matrix, labels []string, opt Options) (*plot.Plot, error) {
	s, err := newStack(q, labels, opt, 0.8)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = opt.title("")
	p.Y.Label.Text = "Ancestry Proportion"
	p.X.Label.Text = "Samples"
	p.Add(s)
	sampleAxis(p, labels, vg.Points(6))
	p.X.Min = -0.5
	p.X.Max = float64(len(labels)) - 0.5
	log.Debugf("stacked plot of %d samples", len(labels))
	return p, nil
}

// groupLabels returns labels placed above the bars at height y.
func groupLabels(xs []float64, names []string, y float64, size vg.Length) (*plotter.Labels, error) {
	xys := make(plotter.XYs, len(xs))
	for i, x := range xs {
		xys[i] = plotter.XY{X: x, Y: y}
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: names})
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].Font.Size = size
		l.TextStyle[i].Font.Weight = stdfnt.WeightBold
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YBottom
	}
	return l, nil
}

const (
	// height of the child group labels (e.g. counties).
	childLabelY = 1.03
	// height of the top level group labels (states).
	topLabelY = 1.09
)

// labelPositions returns the positions and names of the top level
// and child group labels. Groups with a parent (e.g. Nebraska_Dodge)
// get a child label, and every contiguous run of children sharing a
// parent gets one parent label centered above them.
func labelPositions(spans []geo.Span) (topX []float64, topNames []string, childX []float64, childNames []string) {
	var (
		parent string
		lo, hi float64
	)
	flush := func() {
		if parent != "" {
			topX = append(topX, (lo+hi)/2)
			topNames = append(topNames, parent)
		}
		parent = ""
	}
	for _, sp := range spans {
		p, child := geo.Split(sp.Group)
		if p != parent {
			flush()
		}
		if p == "" {
			topX = append(topX, sp.Center())
			topNames = append(topNames, child)
			continue
		}
		childX = append(childX, sp.Center())
		childNames = append(childNames, child)
		if parent == "" {
			parent, lo = p, sp.Center()
		}
		hi = sp.Center()
	}
	flush()
	return
}

// Grouped returns a stacked bar plot with individuals sorted by
// geographic group. Groups are separated by vertical lines and
// labeled on top; groups sharing a parent (e.g. Nebraska_Dodge and
// Nebraska_Sarpy) get a common parent label above their own labels.
func Grouped(q *qmatrix.Matrix, labels []string, g *geo.Grouping, opt Options) (*plot.Plot, error) {
	if _, err := newStack(q, labels, opt, 1); err != nil {
		return nil, err
	}
	order, groups := g.Sort(labels)
	sq, err := q.Permute(order)
	if err != nil {
		return nil, err
	}
	sorted := make([]string, len(order))
	for i, o := range order {
		sorted[i] = labels[o]
	}
	s, err := newStack(sq, sorted, opt, 1)
	if err != nil {
		return nil, err
	}
	log.Infof("Grouped and reordered %d samples", len(sorted))

	p := plot.New()
	p.Title.Text = opt.title(" - Grouped by County/State")
	p.Y.Label.Text = "Ancestry Proportion"
	p.X.Label.Text = "Samples (Sorted by County/State)"
	p.Add(s)

	spans := geo.Spans(groups)
	for _, sp := range spans[1:] {
		x := float64(sp.Start) - 0.5
		line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: 1}})
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(2.5)
		line.LineStyle.Color = color.Black
		p.Add(line)
	}

	topX, topNames, childX, childNames := labelPositions(spans)

	if len(topX) > 0 {
		l, err := groupLabels(topX, topNames, topLabelY, vg.Points(11))
		if err != nil {
			return nil, err
		}
		p.Add(l)
	}
	if len(childX) > 0 {
		l, err := groupLabels(childX, childNames, childLabelY, vg.Points(8))
		if err != nil {
			return nil, err
		}
		p.Add(l)
	}

	sampleAxis(p, sorted, vg.Points(4))
	p.X.Min = -0.5
	p.X.Max = float64(len(sorted)) - 0.5
	p.Y.Min = 0
	p.Y.Max = 1.16
	p.Y.Tick.Label.Font.Size = vg.Points(8)
	p.Y.Tick.Marker = plot.ConstantTicks{
		{Value: 0, Label: "0"},
		{Value: 0.25, Label: "0.25"},
		{Value: 0.5, Label: "0.5"},
		{Value: 0.75, Label: "0.75"},
		{Value: 1, Label: "1"},
	}
	return p, nil
}

// Save saves the plot; the format is chosen by the file extension.
func Save(p *plot.Plot, width, height vg.Length, fn string) error {
	if err := p.Save(width, height, fn); err != nil {
		return err
	}
	log.Noticef("Plot saved to %s", fn)
	return nil
}

// StackedWidth returns the width of a stacked plot scaled by the
// number of samples.
func StackedWidth(n int) vg.Length {
	return vg.Length(math.Max(6, float64(n)*0.25)) * vg.Inch
}
