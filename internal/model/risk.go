package model

import "fmt"

// RiskScore is a classification severity. Higher is riskier.
type RiskScore uint8

// MaxRiskScore is the largest threshold the registry accepts.
const MaxRiskScore RiskScore = 10

// Classification is the oracle's verdict for one account.
type Classification struct {
	Category Category  `json:"category" yaml:"category"`
	Score    RiskScore `json:"score" yaml:"score"`
}

func (c Classification) String() string {
	return fmt.Sprintf("%s/%d", c.Category, c.Score)
}

// ValidateThreshold checks a registry threshold is within [1, MaxRiskScore].
func ValidateThreshold(score int) error {
	if score < 1 || score > int(MaxRiskScore) {
		return fmt.Errorf("%w: %d is outside [1,%d]", ErrInvalidRiskScore, score, MaxRiskScore)
	}
	return nil
}
