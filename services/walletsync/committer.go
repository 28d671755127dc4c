package walletsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/go-batcher"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
)

// coinEvent is the kafka payload published for every store mutation.
type coinEvent struct {
	CoinID        string  `json:"coin_id"`
	Outcome       string  `json:"outcome"`
	CreatedHeight uint32  `json:"created_height"`
	SpentHeight   *uint32 `json:"spent_height,omitempty"`
}

type commitRequest struct {
	states   []*model.CoinState
	resultCh chan commitResult
}

type commitResult struct {
	results []coin.UpsertResult
	err     error
}

type rollbackRequest struct {
	height   uint32
	resultCh chan error
}

// Committer is the single writer in front of the shared coin store. Multiple
// peer sessions commit concurrently validated state; serializing the writes
// through one actor makes the locking discipline structural instead of
// sprinkling a mutex through the sync paths. Conflicting outcomes are pushed
// onto a re-validation channel rather than overwritten.
type Committer struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	coinStore coin.Store

	bloom      *model.CoinBloomFilter
	bloomStats *model.BloomStats

	kafkaCh chan []byte

	commitCh   chan *commitRequest
	rollbackCh chan *rollbackRequest
	conflictCh chan []*model.CoinState

	streamBatcher *batcher.Batcher[model.CoinState]

	startOnce   sync.Once
	bloomSeeded atomic.Bool
}

// NewCommitter creates the committer. kafkaCh may be nil when event
// publishing is disabled.
func NewCommitter(logger ulogger.Logger, tSettings *settings.Settings, coinStore coin.Store, kafkaCh chan []byte) *Committer {
	initPrometheusMetrics()

	bloomStats := model.NewBloomStats()

	c := &Committer{
		logger:     logger,
		settings:   tSettings,
		coinStore:  coinStore,
		bloom:      model.NewCoinBloomFilter(tSettings.CoinStore.BloomCapacity, tSettings.CoinStore.BloomFalsePositiveRate, bloomStats),
		bloomStats: bloomStats,
		kafkaCh:    kafkaCh,
		commitCh:   make(chan *commitRequest),
		rollbackCh: make(chan *rollbackRequest),
		conflictCh: make(chan []*model.CoinState, 16),
	}

	batchSize := tSettings.CoinStore.StoreBatcherSize
	if batchSize <= 0 {
		batchSize = 256
	}

	batchDuration := time.Duration(tSettings.CoinStore.StoreBatcherDurationMillis) * time.Millisecond
	if batchDuration <= 0 {
		batchDuration = 100 * time.Millisecond
	}

	c.streamBatcher = batcher.New[model.CoinState](batchSize, batchDuration, c.sendStreamBatch, true)

	return c
}

// Start runs the writer actor until ctx is canceled. Idempotent: only the
// first call spawns the actor, so there is never more than one writer. The
// bloom filter is seeded from the store's unspent coins so Seen covers state
// committed before a restart.
func (c *Committer) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if unspent, err := c.coinStore.GetUnspentCoins(ctx); err != nil {
			c.logger.Errorf("failed to seed bloom filter from the coin store: %v", err)
		} else {
			for _, state := range unspent {
				c.bloom.Add(state.Coin.ID())
			}

			c.bloomSeeded.Store(true)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return

				case req := <-c.commitCh:
					results, err := c.applyBatch(ctx, req.states)
					req.resultCh <- commitResult{results: results, err: err}

				case req := <-c.rollbackCh:
					req.resultCh <- c.coinStore.RollbackToHeight(ctx, req.height)
				}
			}
		}()

		c.bloomStats.BloomFilterStatsProcessor(ctx)
	})
}

// Commit applies the batch through the writer actor and returns the per-row
// outcomes.
func (c *Committer) Commit(ctx context.Context, states []*model.CoinState) ([]coin.UpsertResult, error) {
	if len(states) == 0 {
		return nil, nil
	}

	req := &commitRequest{
		states:   states,
		resultCh: make(chan commitResult, 1),
	}

	select {
	case c.commitCh <- req:
	case <-ctx.Done():
		return nil, errors.NewContextCanceledError("commit aborted", ctx.Err())
	}

	select {
	case res := <-req.resultCh:
		return res.results, res.err
	case <-ctx.Done():
		return nil, errors.NewContextCanceledError("commit aborted", ctx.Err())
	}
}

// Put enqueues one state on the coalescing batcher. Used by the streaming
// subscription path where per-state commit latency does not matter.
func (c *Committer) Put(state *model.CoinState) {
	c.streamBatcher.Put(state)
}

func (c *Committer) sendStreamBatch(batch []*model.CoinState) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.Commit(ctx, batch); err != nil {
		c.logger.Errorf("failed to commit streamed batch of %d states: %v", len(batch), err)
	}
}

// Rollback undoes coin state above the given height, serialized through the
// same actor as commits.
func (c *Committer) Rollback(ctx context.Context, height uint32) error {
	req := &rollbackRequest{
		height:   height,
		resultCh: make(chan error, 1),
	}

	select {
	case c.rollbackCh <- req:
	case <-ctx.Done():
		return errors.NewContextCanceledError("rollback aborted", ctx.Err())
	}

	select {
	case err := <-req.resultCh:
		return err
	case <-ctx.Done():
		return errors.NewContextCanceledError("rollback aborted", ctx.Err())
	}
}

// Conflicts delivers batches whose stored state disagreed with the incoming
// state. The orchestrator re-validates them instead of blindly overwriting.
func (c *Committer) Conflicts() <-chan []*model.CoinState {
	return c.conflictCh
}

// Seen reports whether the coin may already be committed. A negative answer
// is definitive and lets readers skip the store entirely. Until the filter is
// seeded every coin is reported as possibly present.
func (c *Committer) Seen(coinID chainhash.Hash) bool {
	if !c.bloomSeeded.Load() {
		return true
	}

	return c.bloom.Has(coinID)
}

func (c *Committer) applyBatch(ctx context.Context, states []*model.CoinState) ([]coin.UpsertResult, error) {
	results, err := c.coinStore.UpsertCoinStates(ctx, states)
	if err != nil {
		return nil, err
	}

	var conflicted []*model.CoinState

	for i, res := range results {
		prometheusCommitOutcomes.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case coin.UpsertInserted, coin.UpsertMerged:
			c.bloom.Add(res.CoinID)
			c.publishEvent(states[i], res)

		case coin.UpsertConflict:
			c.logger.Warnf("coin %s conflict: stored state disagrees, queuing re-validation", res.CoinID.String())
			conflicted = append(conflicted, states[i])
			c.publishEvent(states[i], res)
		}
	}

	prometheusCommitBatchSize.Observe(float64(len(states)))

	if len(conflicted) > 0 {
		select {
		case c.conflictCh <- conflicted:
		default:
			c.logger.Warnf("conflict queue full, dropping %d states until next sync round", len(conflicted))
		}
	}

	return results, nil
}

func (c *Committer) publishEvent(state *model.CoinState, res coin.UpsertResult) {
	if c.kafkaCh == nil {
		return
	}

	event := coinEvent{
		CoinID:        res.CoinID.String(),
		Outcome:       res.Outcome.String(),
		CreatedHeight: *state.CreatedHeight,
		SpentHeight:   state.SpentHeight,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Errorf("failed to marshal coin event: %v", err)
		return
	}

	select {
	case c.kafkaCh <- payload:
	default:
		c.logger.Warnf("kafka publish channel full, dropping coin event for %s", event.CoinID)
	}
}
