// Package health runs the periodic integrity sweep behind /healthz: it walks
// the ledger hash chain, re-fingerprints every stored sale and probes the
// anchor with the most recent receipt.
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/integrity"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
	Workers       int
}

// Anchor states reported in Status.
const (
	AnchorHealthy  = "healthy"
	AnchorDegraded = "degraded"
	AnchorMismatch = "mismatch"
	AnchorDisabled = "disabled"
	AnchorUnknown  = "unknown" // nothing anchored yet
)

// Status is the outcome of the latest sweep.
type Status struct {
	CheckedAt       time.Time `json:"checked_at"`
	Entries         int       `json:"entries"`
	LedgerValid     bool      `json:"ledger_valid"`
	LedgerError     string    `json:"ledger_error,omitempty"`
	SalesChecked    int       `json:"sales_checked"`
	SalesMismatched []string  `json:"sales_mismatched,omitempty"`
	Anchor          string    `json:"anchor"`
	AnchorFailures  int       `json:"anchor_failures,omitempty"`
}

// Healthy reports whether nothing in the sweep points at tampering. An
// unreachable anchor alone does not make the till unhealthy.
func (s Status) Healthy() bool {
	return s.LedgerValid && len(s.SalesMismatched) == 0 && s.Anchor != AnchorMismatch
}

// MetricsRecordFunc is an optional callback for recording check results.
// check is one of "ledger", "sales" or "anchor".
type MetricsRecordFunc func(check string, success bool)

// Checker runs periodic integrity sweeps.
type Checker struct {
	store     ledger.Store
	anchor    anchor.Client // nil = anchoring disabled
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu        sync.Mutex
	failCount int
	status    Status
}

// New creates a new Checker. anchorClient may be nil.
func New(store ledger.Store, anchorClient anchor.Client, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}

	return &Checker{
		store:  store,
		anchor: anchorClient,
		cfg:    cfg,
		logger: logger,
		status: Status{LedgerValid: true, Anchor: AnchorUnknown},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Status returns the result of the most recent sweep.
func (h *Checker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.status
	s.SalesMismatched = append([]string(nil), h.status.SalesMismatched...)
	return s
}

// Start runs a sweep immediately and then every CheckInterval until ctx is
// cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	timeout := h.cfg.CheckInterval
	if timeout > 2*time.Second {
		timeout -= time.Second
	}
	for {
		sweepCtx, cancel := context.WithTimeout(ctx, timeout)
		h.CheckAll(sweepCtx)
		cancel()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs one sweep and returns its status.
func (h *Checker) CheckAll(ctx context.Context) Status {
	st := Status{CheckedAt: time.Now().UTC(), LedgerValid: true}

	n, err := h.store.Len(ctx)
	if err != nil {
		h.logger.Error("health: ledger length", zap.Error(err))
	}
	st.Entries = n

	if err := h.store.Verify(ctx); err != nil {
		st.LedgerValid = false
		st.LedgerError = err.Error()
		if errors.Is(err, ledger.ErrTampered) {
			h.logger.Error("health: ledger chain broken", zap.Error(err))
		} else {
			h.logger.Warn("health: ledger verify", zap.Error(err))
		}
	}
	h.record("ledger", st.LedgerValid)

	txs, err := h.store.ListTransactions(ctx)
	if err != nil {
		h.logger.Error("health: list transactions", zap.Error(err))
	} else {
		st.SalesChecked = len(txs)
		st.SalesMismatched = h.checkSales(ctx, txs)
		h.record("sales", len(st.SalesMismatched) == 0)
	}

	st.Anchor, st.AnchorFailures = h.probeAnchor(ctx, txs)

	h.mu.Lock()
	h.status = st
	h.mu.Unlock()
	return st
}

// checkSales re-fingerprints txs with bounded concurrency and returns the
// ids of sales that no longer match, in ledger order.
func (h *Checker) checkSales(ctx context.Context, txs []*ledger.Transaction) []string {
	sem := make(chan struct{}, h.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	bad := make(map[int]string)

	for i, tx := range txs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, tx *ledger.Transaction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if !integrity.VerifyRecord(tx.Record, tx.Fingerprint) {
				mu.Lock()
				bad[i] = tx.Record.ID
				mu.Unlock()
			}
		}(i, tx)
	}
	wg.Wait()

	if len(bad) == 0 {
		return nil
	}
	idx := make([]int, 0, len(bad))
	for i := range bad {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = bad[i]
		h.logger.Warn("health: sale fingerprint mismatch", zap.String("sale_id", bad[i]))
	}
	return out
}

// probeAnchor reads back the most recent sale receipt. The anchor is marked
// degraded after FailThreshold consecutive failures.
func (h *Checker) probeAnchor(ctx context.Context, txs []*ledger.Transaction) (string, int) {
	if h.anchor == nil {
		return AnchorDisabled, 0
	}

	var receipt *ledger.Anchor
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Anchor != nil {
			receipt = txs[i].Anchor
			break
		}
	}
	if receipt == nil {
		return AnchorUnknown, 0
	}

	pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()
	got, err := h.anchor.ReadBack(pctx, receipt.Ref)
	if errors.Is(err, anchor.ErrUnknownRef) {
		// The anchor answered and denies the receipt.
		h.record("anchor", false)
		h.logger.Error("health: anchor does not know ledger receipt",
			zap.String("subject", receipt.Subject),
			zap.String("ref", receipt.Ref),
		)
		h.mu.Lock()
		h.failCount = 0
		h.mu.Unlock()
		return AnchorMismatch, 0
	}
	success := err == nil
	h.record("anchor", success)

	h.mu.Lock()
	prevCount := h.failCount
	if success {
		h.failCount = 0
	} else {
		h.failCount++
	}
	count := h.failCount
	h.mu.Unlock()

	switch {
	case success && got != receipt.Digest:
		h.logger.Error("health: anchored digest disagrees with ledger",
			zap.String("subject", receipt.Subject),
			zap.String("ref", receipt.Ref),
		)
		return AnchorMismatch, 0
	case success:
		if prevCount >= h.cfg.FailThreshold {
			// degraded → healthy
			h.logger.Info("health: anchor recovered", zap.Int("after_failures", prevCount))
		}
		return AnchorHealthy, 0
	case count >= h.cfg.FailThreshold:
		if count == h.cfg.FailThreshold {
			// healthy → degraded (exactly at threshold)
			h.logger.Warn("health: anchor degraded",
				zap.Int("fail_count", count),
				zap.Error(err),
			)
		}
		return AnchorDegraded, count
	default:
		h.logger.Debug("health: anchor probe failed", zap.Int("fail_count", count), zap.Error(err))
		return AnchorHealthy, count
	}
}

func (h *Checker) record(check string, success bool) {
	if h.onMetrics != nil {
		h.onMetrics(check, success)
	}
}
