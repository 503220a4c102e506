package pitch

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// maxDenominator bounds the rational approximation of the rate ratio.
// 1024 keeps the ratio error far below audible pitch resolution while
// holding the prototype filter to a few tens of thousands of taps.
const maxDenominator = 1024

// resampleChannel converts x from inRate to outRate. The polyphase filter's
// group delay is removed so output sample 0 lines up with input sample 0,
// and the result has exactly round(len(x)*outRate/inRate) samples.
func resampleChannel(x []float64, inRate, outRate float64, q resample.Quality) ([]float64, error) {
	r, err := resample.NewForRates(inRate, outRate,
		resample.WithQuality(q),
		resample.WithMaxDenominator(maxDenominator),
	)
	if err != nil {
		return nil, err
	}

	up, down := r.Ratio()
	want := int(math.Round(float64(len(x)) * float64(up) / float64(down)))
	if want <= 0 {
		want = 1
	}

	// Prototype taps are centered, so the delay is half the filter length
	// in the upsampled domain.
	delay := float64(len(r.Prototype())-1) / 2
	skip := int(math.Round(delay / float64(down)))

	tail := int(math.Ceil(float64(skip*down)/float64(up))) + r.TapsPerPhase() + 1
	padded := make([]float64, len(x)+tail)
	copy(padded, x)

	y := r.Process(padded)

	out := make([]float64, want)
	if skip < len(y) {
		copy(out, y[skip:])
	}
	return out, nil
}
