package walletsync

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util/merkleproof"
	"github.com/verdant-network/walletnode/util/tracing"
)

// ValidationOutcome tags one coin state's validation result.
type ValidationOutcome int

const (
	// OutcomeAccepted means the state is proven against the weight proof
	// anchored chain and may be committed.
	OutcomeAccepted ValidationOutcome = iota

	// OutcomeDeferred means the state describes heights beyond the proof tip;
	// it is picked up on a later sync round. Not an error.
	OutcomeDeferred

	// OutcomeRejected is only used for states that failed a non-fatal local
	// check. Proof failures abort the whole batch instead.
	OutcomeRejected
)

func (o ValidationOutcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ValidatedState is the per-entry validation result.
type ValidatedState struct {
	State   *model.CoinState
	Outcome ValidationOutcome
	Reason  string
}

// CoinStateValidator proves peer-reported coin states against a validated
// weight proof, fetching headers and inclusion proofs from the session's peer
// as needed. Any failed proof is treated as peer dishonesty and aborts the
// whole batch.
type CoinStateValidator struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	coinStore coin.Store
	stats     *gocore.Stat
}

// NewCoinStateValidator creates a validator over the local coin store.
func NewCoinStateValidator(logger ulogger.Logger, tSettings *settings.Settings, coinStore coin.Store) *CoinStateValidator {
	initPrometheusMetrics()

	return &CoinStateValidator{
		logger:    logger,
		settings:  tSettings,
		coinStore: coinStore,
		stats:     gocore.NewStat("coinvalidator"),
	}
}

// ValidateStates processes the batch entry by entry. The session must carry a
// validated weight proof. Entries are independent; a returned error means the
// peer supplied a provably bad proof and the batch must not be salvaged.
func (v *CoinStateValidator) ValidateStates(ctx context.Context, session *SyncSession, states []*model.CoinState) ([]*ValidatedState, error) {
	ctx, _, deferFn := tracing.Tracer("walletsync").Start(ctx, "ValidateStates",
		tracing.WithParentStat(v.stats),
	)
	defer deferFn()

	_, wpResult := session.Proof()
	if wpResult == nil || !wpResult.Valid {
		return nil, errors.NewProcessingError("coin state validation requires a validated weight proof")
	}

	results := make([]*ValidatedState, 0, len(states))

	for i, state := range states {
		v.logger.Debugf("[%s] validating coin state %d of %d", session.Peer.PeerID(), i+1, len(states))

		result, err := v.validateEntry(ctx, session, state)
		if err != nil {
			return nil, err
		}

		prometheusValidatorResults.WithLabelValues(result.Outcome.String()).Inc()
		results = append(results, result)
	}

	return results, nil
}

func (v *CoinStateValidator) validateEntry(ctx context.Context, session *SyncSession, state *model.CoinState) (*ValidatedState, error) {
	// A state with no created height is a contract violation by the caller,
	// not peer misbehavior.
	if err := state.Validate(); err != nil {
		return nil, err
	}

	_, wpResult := session.Proof()

	stateHash := state.Hash()
	if session.Cache.StateValidated(stateHash) {
		return &ValidatedState{State: state, Outcome: OutcomeAccepted}, nil
	}

	// Fast path: a local record with identical heights was already proven
	// when it was first committed. No network requests for this entry.
	local, err := v.coinStore.GetCoinState(ctx, state.Coin.ID())
	if err != nil && !errors.Is(err, errors.ErrCoinNotFound) {
		return nil, err
	}

	if local != nil && local.Equal(state) {
		session.Cache.MarkStateValidated(stateHash)
		return &ValidatedState{State: state, Outcome: OutcomeAccepted}, nil
	}

	// Heights beyond the proof tip are deferred work, not errors.
	if *state.CreatedHeight > wpResult.TipHeight ||
		(state.SpentHeight != nil && *state.SpentHeight > wpResult.TipHeight) {
		return &ValidatedState{State: state, Outcome: OutcomeDeferred, Reason: "beyond proof tip"}, nil
	}

	// Creation proof. Skipped when the local record already proved the same
	// created height — only the spend is new then.
	if local == nil || *local.CreatedHeight != *state.CreatedHeight {
		if err = v.verifyCreation(ctx, session, state); err != nil {
			return nil, err
		}
	}

	if state.SpentHeight != nil {
		if err = v.verifySpend(ctx, session, state); err != nil {
			return nil, err
		}
	}

	session.Cache.MarkStateValidated(stateHash)

	return &ValidatedState{State: state, Outcome: OutcomeAccepted}, nil
}

// verifyCreation proves the coin's puzzle hash against the additions root of
// the block at the claimed creation height, and that block against the chain.
func (v *CoinStateValidator) verifyCreation(ctx context.Context, session *SyncSession, state *model.CoinState) error {
	hb, err := v.fetchHeaderValidated(ctx, session, *state.CreatedHeight)
	if err != nil {
		return err
	}

	batch, err := session.Peer.RequestAdditions(ctx, hb.Height, hb.Hash(), []chainhash.Hash{*state.Coin.PuzzleHash})
	if err != nil {
		return err
	}

	proof := batch.ProofFor(*state.Coin.PuzzleHash)
	if proof == nil {
		return errors.NewInclusionProofFailedError("peer %s supplied no addition proof for coin %s at height %d",
			session.Peer.PeerID(), state.Coin.ID().String(), hb.Height)
	}

	if !merkleproof.VerifyProof(*state.Coin.PuzzleHash, proof, hb.AdditionsRoot) {
		return errors.NewInclusionProofFailedError("addition proof for coin %s does not verify against block %d",
			state.Coin.ID().String(), hb.Height)
	}

	return nil
}

// verifySpend proves the coin ID against the removals root of the block at
// the claimed spend height.
func (v *CoinStateValidator) verifySpend(ctx context.Context, session *SyncSession, state *model.CoinState) error {
	hb, err := v.fetchHeaderValidated(ctx, session, *state.SpentHeight)
	if err != nil {
		return err
	}

	coinID := state.Coin.ID()

	batch, err := session.Peer.RequestRemovals(ctx, hb.Height, hb.Hash(), []chainhash.Hash{coinID})
	if err != nil {
		return err
	}

	proof := batch.ProofFor(coinID)
	if proof == nil {
		return errors.NewInclusionProofFailedError("peer %s supplied no removal proof for coin %s at height %d",
			session.Peer.PeerID(), coinID.String(), hb.Height)
	}

	if !merkleproof.VerifyProof(coinID, proof, hb.RemovalsRoot) {
		return errors.NewInclusionProofFailedError("removal proof for coin %s does not verify against block %d",
			coinID.String(), hb.Height)
	}

	return nil
}

// AcceptedStates filters a result list down to the accepted coin states.
func AcceptedStates(results []*ValidatedState) []*model.CoinState {
	accepted := make([]*model.CoinState, 0, len(results))

	for _, r := range results {
		if r.Outcome == OutcomeAccepted {
			accepted = append(accepted, r.State)
		}
	}

	return accepted
}
