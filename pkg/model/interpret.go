package model

import (
	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// Probability bands for the malicious class.
const (
	MaliciousBand  = 0.8
	SuspiciousBand = 0.6
)

// Interpret maps a [benign, malicious] probability vector onto a threat
// level and confidence. Vectors shorter than two entries are treated as
// 0.5/0.5.
func Interpret(probs types.ProbabilityVector) (level types.ThreatLevel, confidence, pBenign, pMalicious float64) {
	pBenign, pMalicious = 0.5, 0.5
	if len(probs) >= 2 {
		pBenign, pMalicious = probs[0], probs[1]
	}

	switch {
	case pMalicious > MaliciousBand:
		return types.ThreatMalicious, pMalicious, pBenign, pMalicious
	case pMalicious > SuspiciousBand:
		return types.ThreatSuspicious, pMalicious, pBenign, pMalicious
	default:
		return types.ThreatBenign, pBenign, pBenign, pMalicious
	}
}

// HardVector converts a hard class prediction into a fixed probability
// vector: class 1 is malicious.
func HardVector(label int64) types.ProbabilityVector {
	if label == 1 {
		return types.ProbabilityVector{0.2, 0.8}
	}
	return types.ProbabilityVector{0.8, 0.2}
}

// BuildVector orders the record's values by names. Missing features are 0.
func BuildVector(record types.FeatureRecord, names []string) []float32 {
	values := record.Values()
	vec := make([]float32, len(names))
	for i, name := range names {
		vec[i] = float32(values[name])
	}
	return vec
}
