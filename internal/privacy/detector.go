package privacy

import (
	"fmt"

	"aligncv/internal/config"
)

// NewDetector builds the detector selected by cfg.Detector.
func NewDetector(cfg config.PrivacyConfig) (Detector, error) {
	switch cfg.Detector {
	case "", "regex":
		return NewRegexDetector(cfg.Entities, cfg.CustomPatterns)
	case "presidio":
		if cfg.PresidioEndpoint == "" {
			return nil, fmt.Errorf("presidio detector requires privacy.presidioEndpoint")
		}
		return NewPresidioDetector(cfg.PresidioEndpoint, cfg.ScoreThreshold, nil, cfg.Timeout), nil
	case "composite":
		if cfg.PresidioEndpoint == "" {
			return nil, fmt.Errorf("composite detector requires privacy.presidioEndpoint")
		}
		regex, err := NewRegexDetector(cfg.Entities, cfg.CustomPatterns)
		if err != nil {
			return nil, err
		}
		presidio := NewPresidioDetector(cfg.PresidioEndpoint, cfg.ScoreThreshold, nil, cfg.Timeout)
		return NewCompositeDetector(regex, presidio), nil
	default:
		return nil, fmt.Errorf("unknown pii detector: %s", cfg.Detector)
	}
}
