package pitch

import (
	"math"

	"github.com/apresai/voicekit/internal/analysis"
	"github.com/apresai/voicekit/internal/audio"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// ceiling is the highest sample magnitude normalization produces.
var ceiling = core.DBToLinear(-HeadroomDB)

// normalize applies cfg's level correction to buf in place and returns the
// linear gain used. Whatever the mode, the result never exceeds ceiling.
func normalize(buf *audio.Buffer, cfg config) float64 {
	peak := buf.Peak()
	if peak == 0 {
		return 1
	}

	var gain float64
	switch cfg.normalize {
	case NormalizeNone:
		gain = 1
	case NormalizeLoudness:
		lufs := analysis.IntegratedLoudness(buf)
		if math.IsInf(lufs, 0) || math.IsNaN(lufs) {
			gain = ceiling / peak
		} else {
			gain = core.DBToLinear(cfg.loudnessTarget - lufs)
		}
	default:
		gain = ceiling / peak
	}

	if peak*gain > ceiling {
		gain = ceiling / peak
	}
	if gain == 1 {
		return gain
	}

	for _, s := range buf.Samples {
		for i := range s {
			s[i] *= gain
		}
	}
	return gain
}
