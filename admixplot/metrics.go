package admixplot

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"bitbucket.org/admixk/admixk/choosek"
)

// Metrics returns two plots over K: the marginal likelihood and the
// number of components used to explain the structure.
func Metrics(metrics []choosek.Metric) (lnL *plot.Plot, bestK *plot.Plot, err error) {
	var lpts, kpts plotter.XYs
	for _, m := range metrics {
		if m.HasLikelihood {
			lpts = append(lpts, plotter.XY{X: float64(m.K), Y: m.Likelihood})
		}
		if m.BestK > 0 {
			kpts = append(kpts, plotter.XY{X: float64(m.K), Y: float64(m.BestK)})
		}
	}
	if len(lpts) == 0 && len(kpts) == 0 {
		return nil, nil, errors.New("no metrics to plot")
	}

	lnL = plot.New()
	lnL.Title.Text = "Marginal likelihood"
	lnL.X.Label.Text = "K"
	lnL.Y.Label.Text = "LLBO"
	if len(lpts) > 0 {
		if err = plotutil.AddLinePoints(lnL, lpts); err != nil {
			return nil, nil, err
		}
	}

	bestK = plot.New()
	bestK.Title.Text = "Model components used"
	bestK.X.Label.Text = "K"
	bestK.Y.Label.Text = "K_phi*"
	if len(kpts) > 0 {
		if err = plotutil.AddLinePoints(bestK, kpts); err != nil {
			return nil, nil, err
		}
	}
	return lnL, bestK, nil
}
