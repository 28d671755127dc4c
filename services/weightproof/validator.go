package weightproof

import (
	"context"
	"net/http"
	"time"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util/tracing"
)

// Validator is the structural weight proof validator.
type Validator struct {
	logger   ulogger.Logger
	settings *settings.Settings
	stats    *gocore.Stat
}

// NewValidator creates a weight proof validator.
func NewValidator(logger ulogger.Logger, tSettings *settings.Settings) *Validator {
	initPrometheusMetrics()

	return &Validator{
		logger:   logger,
		settings: tSettings,
		stats:    gocore.NewStat("weightproof"),
	}
}

func (v *Validator) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "OK", nil
}

// ValidateWeightProof runs the structural checks in order: sub-epoch summary
// chain, recent window continuity, tip agreement, signature spot-check. Any
// failure is returned as a proof-invalid error; the fork point against the
// local summary list is only computed for a proof that passed everything.
func (v *Validator) ValidateWeightProof(ctx context.Context, proof *model.WeightProof, localSES []*model.SubEpochSummary) (*ValidationResult, error) {
	_, _, deferFn := tracing.Tracer("weightproof").Start(ctx, "ValidateWeightProof",
		tracing.WithParentStat(v.stats),
	)
	defer deferFn()

	start := time.Now()

	if err := v.validate(proof); err != nil {
		prometheusWeightProofValidations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	forkPoint := ComputeForkPoint(proof.SubEpochs, localSES)

	prometheusWeightProofValidations.WithLabelValues("valid").Inc()
	prometheusWeightProofDuration.Observe(time.Since(start).Seconds())

	v.logger.Infof("weight proof for tip %s (height %d, weight %d) validated, fork point %d",
		proof.TipHash.String(), proof.TipHeight, proof.TotalWeight, forkPoint)

	return &ValidationResult{
		Valid:         true,
		ForkPoint:     forkPoint,
		SubEpochs:     proof.SubEpochs,
		RecentHeaders: proof.RecentHeaders,
		TipHeight:     proof.TipHeight,
		TipWeight:     proof.TotalWeight,
	}, nil
}

func (v *Validator) validate(proof *model.WeightProof) error {
	if proof == nil || proof.TipHash == nil {
		return errors.NewProofInvalidError("weight proof is missing a tip")
	}

	if len(proof.RecentHeaders) == 0 {
		return errors.NewProofInvalidError("weight proof has an empty header window")
	}

	if err := v.checkSubEpochChain(proof); err != nil {
		return err
	}

	if err := v.checkRecentWindow(proof); err != nil {
		return err
	}

	if err := v.checkTipAgreement(proof); err != nil {
		return err
	}

	return v.spotCheckSignatures(proof)
}

func (v *Validator) checkSubEpochChain(proof *model.WeightProof) error {
	for i, ses := range proof.SubEpochs {
		contentHash := ses.ContentHash()
		if !ses.Hash.IsEqual(&contentHash) {
			return errors.NewProofInvalidError("sub-epoch %d hash does not match its content", i)
		}

		if ses.StartHeight > ses.EndHeight {
			return errors.NewProofInvalidError("sub-epoch %d has inverted height range %d..%d", i, ses.StartHeight, ses.EndHeight)
		}

		if ses.EndHeight > proof.TipHeight {
			return errors.NewProofInvalidError("sub-epoch %d ends at %d beyond tip height %d", i, ses.EndHeight, proof.TipHeight)
		}

		// A sub-epoch ending inside the recent window must commit to the
		// window's block at that height.
		if hb := proof.HeaderAtHeight(ses.EndHeight); hb != nil && !hb.Hash().IsEqual(ses.LastBlockHash) {
			return errors.NewProofInvalidError("sub-epoch %d last block hash does not match the window header at %d", i, ses.EndHeight)
		}

		if i == 0 {
			if ses.StartHeight != 0 {
				return errors.NewProofInvalidError("first sub-epoch starts at %d, not genesis", ses.StartHeight)
			}

			continue
		}

		prev := proof.SubEpochs[i-1]

		if !ses.PrevHash.IsEqual(prev.Hash) {
			return errors.NewProofInvalidError("sub-epoch %d does not chain from its predecessor", i)
		}

		if ses.StartHeight != prev.EndHeight+1 {
			return errors.NewProofInvalidError("sub-epoch %d starts at %d, predecessor ends at %d", i, ses.StartHeight, prev.EndHeight)
		}

		if ses.Weight <= prev.Weight {
			return errors.NewProofInvalidError("sub-epoch %d weight %d does not exceed predecessor weight %d", i, ses.Weight, prev.Weight)
		}
	}

	if n := len(proof.SubEpochs); n > 0 && proof.SubEpochs[n-1].Weight > proof.TotalWeight {
		return errors.NewProofInvalidError("sub-epoch weight %d exceeds claimed total weight %d", proof.SubEpochs[n-1].Weight, proof.TotalWeight)
	}

	return nil
}

func (v *Validator) checkRecentWindow(proof *model.WeightProof) error {
	headers := proof.RecentHeaders

	// The window must cover the configured size unless the chain itself is
	// shorter than that.
	required := v.settings.WalletSync.RecentWindowSize
	if chainLen := int(proof.TipHeight) + 1; chainLen < required {
		required = chainLen
	}

	if len(headers) < required {
		return errors.NewProofInvalidError("header window of %d blocks is below the required %d", len(headers), required)
	}

	for i := 1; i < len(headers); i++ {
		if err := headers[i].CheckChainLink(headers[i-1]); err != nil {
			return errors.NewProofInvalidError("header window breaks at height %d", headers[i].Height, err)
		}
	}

	return nil
}

func (v *Validator) checkTipAgreement(proof *model.WeightProof) error {
	tip := proof.RecentHeaders[len(proof.RecentHeaders)-1]

	if !tip.Hash().IsEqual(proof.TipHash) {
		return errors.NewProofInvalidError("window tip %s does not match claimed tip %s", tip.Hash().String(), proof.TipHash.String())
	}

	if tip.Height != proof.TipHeight {
		return errors.NewProofInvalidError("window tip height %d does not match claimed height %d", tip.Height, proof.TipHeight)
	}

	if tip.Weight != proof.TotalWeight {
		return errors.NewProofInvalidError("window tip weight %d does not match claimed weight %d", tip.Weight, proof.TotalWeight)
	}

	return nil
}

// spotCheckSignatures verifies the farmer signature on the last
// SignatureSpotCheckWindow blocks of the window. Checking a bounded suffix
// keeps validation O(window) while a forgery would need that many
// legitimately signed blocks.
func (v *Validator) spotCheckSignatures(proof *model.WeightProof) error {
	headers := proof.RecentHeaders

	checkFrom := 0
	if len(headers) > v.settings.WalletSync.SignatureSpotCheckWindow {
		checkFrom = len(headers) - v.settings.WalletSync.SignatureSpotCheckWindow
	}

	for _, hb := range headers[checkFrom:] {
		if err := hb.VerifyFoliageSignature(); err != nil {
			return errors.NewProofInvalidError("foliage signature check failed at height %d", hb.Height, err)
		}
	}

	return nil
}

// ComputeForkPoint walks the two summary lists in lockstep and returns the
// end height of the last summary they agree on. The local list moves as syncs
// commit, so callers holding a cached validation must recompute this against
// the summaries currently stored.
func ComputeForkPoint(proofSES, localSES []*model.SubEpochSummary) uint32 {
	forkPoint := uint32(0)

	for i := 0; i < len(proofSES) && i < len(localSES); i++ {
		if !proofSES[i].Hash.IsEqual(localSES[i].Hash) {
			break
		}

		forkPoint = proofSES[i].EndHeight
	}

	return forkPoint
}
