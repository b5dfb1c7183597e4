package inference

import "github.com/ohnodev/obelisk-core/model"

// Sampling parameter bounds. Values outside these ranges are clamped, not
// rejected, so a sloppy caller still gets a usable completion. Zero values
// pass through untouched and mean "provider default".
const (
	minTemperature = 0.01
	maxTemperature = 2.0
	minTopP        = 0.01
	maxTopP        = 1.0
	minTopK        = 1
	maxTopK        = 200
	minRepetition  = 1.0
	maxRepetition  = 3.0
	// defaultContextMax bounds max_tokens when no model context size is
	// configured.
	defaultContextMax = 4096
)

// clampRequest returns a copy of req with non-zero sampling parameters
// clamped into the supported ranges and max_tokens bounded by the model
// context size.
func clampRequest(req model.Request, contextMax int) model.Request {
	if contextMax <= 0 {
		contextMax = defaultContextMax
	}
	if req.Temperature != 0 {
		req.Temperature = clampFloat(req.Temperature, minTemperature, maxTemperature)
	}
	if req.TopP != 0 {
		req.TopP = clampFloat(req.TopP, minTopP, maxTopP)
	}
	if req.TopK != 0 {
		req.TopK = clampInt(req.TopK, minTopK, maxTopK)
	}
	if req.RepetitionPenalty != 0 {
		req.RepetitionPenalty = clampFloat(req.RepetitionPenalty, minRepetition, maxRepetition)
	}
	if req.MaxTokens != 0 {
		req.MaxTokens = clampInt(req.MaxTokens, 1, contextMax)
	}
	return req
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
