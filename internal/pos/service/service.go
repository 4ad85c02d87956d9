package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"go.uber.org/zap"
)

var (
	// ErrEmptyBatch is returned when an audit is requested over zero sales.
	ErrEmptyBatch = errors.New("no transactions to audit")

	// ErrNotCovered is returned when a proof is requested for a sale that
	// was appended after the audit's snapshot.
	ErrNotCovered = errors.New("sale is not covered by this audit")

	// ErrAnchorDisabled is returned by explicit anchor requests when no
	// anchor client is configured.
	ErrAnchorDisabled = errors.New("anchoring is not configured")
)

// MetricsRecorder receives service-level events. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	SaleRecorded()
	AnchorSubmission(kind anchor.Kind, success bool)
	IntegrityCheck(match bool)
	AuditCompleted(leaves int)
}

// SaleService records sales into the ledger, anchors their digests and runs
// verification and audits over what was recorded.
type SaleService struct {
	store         ledger.Store
	anchor        anchor.Client // nil = anchoring disabled
	anchorTimeout time.Duration
	metrics       MetricsRecorder // nil = no metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NewSaleService creates a SaleService. anchorClient may be nil.
func NewSaleService(store ledger.Store, anchorClient anchor.Client, logger *zap.Logger) *SaleService {
	return &SaleService{
		store:         store,
		anchor:        anchorClient,
		anchorTimeout: 15 * time.Second,
		logger:        logger,
		now:           time.Now,
	}
}

// SetAnchorTimeout bounds each anchor call.
func (s *SaleService) SetAnchorTimeout(d time.Duration) {
	if d > 0 {
		s.anchorTimeout = d
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *SaleService) SetMetricsRecorder(m MetricsRecorder) {
	s.metrics = m
}

// newID returns a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// submit sends digest to the anchor and, once accepted, appends the
// reference to the ledger. The subject must already be in the ledger.
func (s *SaleService) submit(ctx context.Context, kind anchor.Kind, subject, digest string) (*ledger.Anchor, error) {
	if s.anchor == nil {
		return nil, ErrAnchorDisabled
	}

	actx, cancel := context.WithTimeout(ctx, s.anchorTimeout)
	defer cancel()

	var ref string
	var err error
	switch kind {
	case anchor.KindRoot:
		ref, err = s.anchor.SubmitRoot(actx, digest)
	default:
		ref, err = s.anchor.SubmitFingerprint(actx, digest)
	}
	if s.metrics != nil {
		s.metrics.AnchorSubmission(kind, err == nil)
	}
	if err != nil {
		s.logger.Warn("anchor submission failed (non-fatal)",
			zap.String("subject", subject),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		if !errors.Is(err, anchor.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", anchor.ErrUnavailable, err)
		}
		return nil, err
	}

	receipt := ledger.Anchor{
		Subject:    subject,
		Digest:     digest,
		Ref:        ref,
		AnchoredAt: s.now().UTC(),
	}
	e, err := ledger.NewAnchorEntry(receipt)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Append(ctx, e); err != nil {
		s.logger.Error("ledger append of anchor receipt failed",
			zap.String("subject", subject),
			zap.String("ref", ref),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record anchor receipt: %w", err)
	}

	s.logger.Info("digest anchored",
		zap.String("subject", subject),
		zap.String("ref", ref),
	)
	return &receipt, nil
}
