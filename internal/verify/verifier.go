// Package verify combines source trust with cross-source corroboration into
// a final confidence score and a publish/review/reject decision.
package verify

import (
	"context"
	"fmt"

	"github.com/jeffkirdeikis/pulse-verify/internal/match"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
)

// Verifier scores candidate events. Stateless apart from its injected
// collaborators; safe for concurrent use.
type Verifier struct {
	trust  *trust.Table
	finder *match.Finder
	cfg    model.ThresholdConfig
}

// NewVerifier creates a verifier with the given trust table, match finder,
// and threshold configuration
func NewVerifier(table *trust.Table, finder *match.Finder, cfg model.ThresholdConfig) *Verifier {
	return &Verifier{trust: table, finder: finder, cfg: cfg}
}

// Verify computes the final confidence for a candidate. excludeID keeps an
// already-stored event from corroborating itself during re-verification.
//
// Each match contributes similarity x matchTrust x BoostFactor, and the summed
// boost is capped at CorroborationCap so many low-quality matches cannot
// inflate the score. The final confidence never reaches certainty.
func (v *Verifier) Verify(ctx context.Context, candidate model.CandidateEvent, excludeID string) (*model.VerificationResult, error) {
	baseTrust := v.trust.Lookup(candidate.SourceTag)

	matches, err := v.finder.FindMatches(ctx, candidate, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}

	result := &model.VerificationResult{
		BaseTrust:  baseTrust,
		MatchCount: len(matches),
	}

	if len(matches) == 0 {
		result.FinalConfidence = baseTrust
		result.Details = append(result.Details, "no corroborating sources")
		result.Decision = v.Decision(result.FinalConfidence)
		return result, nil
	}

	var boost float64
	for _, m := range matches {
		matchTrust := v.trust.Lookup(m.Event.SourceTag)
		contribution := m.Similarity * matchTrust * v.cfg.BoostFactor
		boost += contribution

		result.Matches = append(result.Matches, model.SourceMatch{
			SourceTag:  m.Event.SourceTag,
			EventID:    m.Event.ID,
			Similarity: m.Similarity,
			Trust:      matchTrust,
		})
		result.Details = append(result.Details,
			fmt.Sprintf("corroborated by %s (similarity %.2f, trust %.2f, boost %.3f)",
				m.Event.SourceTag, m.Similarity, matchTrust, contribution))
	}

	if boost > v.cfg.CorroborationCap {
		boost = v.cfg.CorroborationCap
		result.Details = append(result.Details,
			fmt.Sprintf("corroboration capped at %.2f", v.cfg.CorroborationCap))
	}
	result.CorroborationScore = boost

	final := baseTrust + boost
	if final > v.cfg.ConfidenceCeiling {
		final = v.cfg.ConfidenceCeiling
	}
	result.FinalConfidence = final
	result.Decision = v.Decision(final)

	return result, nil
}

// Decision maps a confidence score onto the routing outcome
func (v *Verifier) Decision(confidence float64) model.Decision {
	switch {
	case confidence >= v.cfg.AutoApprove:
		return model.DecisionApprove
	case confidence >= v.cfg.Review:
		return model.DecisionReview
	default:
		return model.DecisionReject
	}
}
