package pipeline

import (
	"github.com/banshee-data/wavefront.budget/internal/record"
)

// Summary holds the fitting error statistics of a record batch.
type Summary struct {
	MeanStd                float64
	MeanSegmentRSS         []float64
	MeanModalCoefsSquare   []float64
	MeanSegmentResidualRSS []float64
	// Eta holds the log-log slope of each segment's modal spectrum.
	Eta []float64
}

// Summarize computes the statistics of b.
func Summarize(b record.Batch) (Summary, error) {
	coefs, err := b.MeanModalCoefsSquare()
	if err != nil {
		return Summary{}, err
	}
	residual, err := b.MeanSegmentResidualRSS()
	if err != nil {
		return Summary{}, err
	}
	eta, err := record.SpectrumSlope(coefs, b.NMode())
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		MeanStd:                b.MeanStd(),
		MeanSegmentRSS:         b.MeanSegmentRSS(),
		MeanModalCoefsSquare:   coefs,
		MeanSegmentResidualRSS: residual,
		Eta:                    eta,
	}, nil
}
