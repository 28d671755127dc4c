/*
Package weightproof validates peer-supplied weight proofs.

A weight proof lets a light client accept a remote tip without replaying the
whole chain: a chained list of sub-epoch summaries carries the cumulative
weight, and a recent window of full header blocks anchors the tip. This
package checks the structure of such a proof (summary chaining, window
continuity, tip agreement and a bounded farmer-signature spot-check) and
computes the fork point against the locally persisted summary list.

Full VDF re-execution is a collaborator concern and is not performed here;
the structural checks are what bind the proof to the claimed tip.
*/
package weightproof

import (
	"context"

	"github.com/verdant-network/walletnode/model"
)

// ValidationResult is the outcome of a successful weight proof validation.
type ValidationResult struct {
	// Valid is always true on a nil-error return; failures are reported as
	// errors so callers can treat them as peer misbehavior.
	Valid bool

	// ForkPoint is the last height at which the proof's sub-epoch chain
	// agrees with the locally persisted one. Zero when nothing is stored
	// locally or the chains diverge from the start.
	ForkPoint uint32

	// SubEpochs and RecentHeaders are the validated contents of the proof,
	// handed back so callers do not re-parse the proof.
	SubEpochs     []*model.SubEpochSummary
	RecentHeaders []*model.HeaderBlock

	TipHeight uint32
	TipWeight uint64
}

// ValidatorI is the weight proof validation contract consumed by the sync
// orchestrator.
type ValidatorI interface {
	// Health performs a health check on the validator.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// ValidateWeightProof checks the proof structurally and computes the fork
	// point against localSES, the locally persisted sub-epoch summary list.
	// A non-nil error means the proof is unverifiable and the supplying peer
	// should be disconnected.
	ValidateWeightProof(ctx context.Context, proof *model.WeightProof, localSES []*model.SubEpochSummary) (*ValidationResult, error)
}
