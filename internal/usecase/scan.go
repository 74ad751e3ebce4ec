package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Ares/internal/domain/models"
	domrepo "Ares/internal/domain/repository"
	pkgkafka "Ares/pkg/kafka"
	"Ares/pkg/logger"
	"Ares/pkg/util"
)

// Analyzer produces an analysis report for one symbol.
type Analyzer interface {
	Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisReport, error)
}

// Locker guards a scan run against duplicate delivery.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type ScanConfig struct {
	Topic   string
	LockTTL time.Duration
	Timeout time.Duration
}

// ScanSummary counts the outcome of one scan run.
type ScanSummary struct {
	RunID     string
	Published int
	Alerts    int
	Failed    []string
	Duplicate bool
}

// ScanHandler consumes scan requests and emits one SignalEvent per symbol.
type ScanHandler struct {
	analysis     Analyzer
	fundamentals domrepo.FundamentalsStore
	publisher    domrepo.SignalPublisher
	locker    Locker
	metrics   domrepo.Metrics
	log       *logger.Logger
	cfg       ScanConfig
}

// NewScanHandler builds the handler. fundamentals may be nil, in which case
// each analysis looks its snapshot up on its own.
func NewScanHandler(analysis Analyzer, fundamentals domrepo.FundamentalsStore, publisher domrepo.SignalPublisher, locker Locker, metrics domrepo.Metrics, log *logger.Logger, cfg ScanConfig) *ScanHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ScanHandler{
		analysis:     analysis,
		fundamentals: fundamentals,
		publisher:    publisher,
		locker:       locker,
		metrics:      metrics,
		log:          log.Component("scan"),
		cfg:          cfg,
	}
}

func (h *ScanHandler) Topic() string { return h.cfg.Topic }

// incoming message schema: {run_id, symbols[]}
func (h *ScanHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ScanRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("scan_unmarshal")
		return fmt.Errorf("decode scan request: %w", err)
	}
	if req.RunID == "" {
		req.RunID = pkgkafka.TraceIDFrom(ctx)
	}
	_, err := h.Scan(ctx, req)
	return err
}

// Scan analyzes every symbol of the request. Per-symbol failures are logged and
// skipped; an error is returned only when nothing could be published.
func (h *ScanHandler) Scan(ctx context.Context, req models.ScanRequest) (ScanSummary, error) {
	start := time.Now()
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	sum := ScanSummary{RunID: req.RunID}
	symbols := util.NormalizeSymbols(req.Symbols)
	log := h.log.With(logger.String("run_id", req.RunID))
	if len(symbols) == 0 {
		log.Warn("scan request without symbols")
		return sum, nil
	}

	lockKey := "scan:" + req.RunID
	ok, err := h.locker.TryLock(ctx, lockKey, h.cfg.LockTTL)
	if err != nil {
		return sum, fmt.Errorf("lock scan %s: %w", req.RunID, err)
	}
	if !ok {
		log.Info("scan already running or done, skipping")
		sum.Duplicate = true
		return sum, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	snapshots := h.prefetch(ctx, log, symbols)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			sum.Failed = append(sum.Failed, sym)
			continue
		}
		params := AnalyzeParams{Symbol: sym}
		if f, ok := snapshots[sym]; ok {
			params.Fundamentals = &f
		}
		report, err := h.analysis.Analyze(ctx, params)
		if err != nil {
			log.Warn("scan symbol failed", logger.String("symbol", sym), logger.Error(err))
			sum.Failed = append(sum.Failed, sym)
			continue
		}
		ev := models.SignalEvent{
			ID:        uuid.NewString(),
			RunID:     req.RunID,
			Symbol:    sym,
			Timestamp: time.Now().UTC(),
			LastPrice: report.LastPrice,
			Score:     report.Signal.Score,
			Verdict:   report.Signal.Verdict,
			Rationale: report.Signal.Rationale,
			Alert:     report.Signal.Verdict.IsStrong(),
		}
		if err := h.publisher.PublishSignal(ctx, ev); err != nil {
			log.Error("publish signal failed", logger.String("symbol", sym), logger.Error(err))
			sum.Failed = append(sum.Failed, sym)
			continue
		}
		sum.Published++
		if ev.Alert {
			sum.Alerts++
			log.Info("alert", logger.String("symbol", sym), logger.String("verdict", string(ev.Verdict)),
				logger.Float("score", ev.Score))
		}
	}

	h.metrics.RecordLatency("scan", time.Since(start).Seconds())
	if sum.Published == 0 {
		h.metrics.RecordError("scan_failed")
		// release so a redelivery can retry the run
		if err := h.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Warn("release scan lock", logger.Error(err))
		}
		return sum, fmt.Errorf("scan %s: all %d symbols failed", req.RunID, len(symbols))
	}
	log.Info("scan complete",
		logger.Int("published", sum.Published),
		logger.Int("alerts", sum.Alerts),
		logger.Strings("failed", sum.Failed),
		logger.Duration("elapsed", time.Since(start)))
	return sum, nil
}

// prefetch loads the fundamentals of the whole run in one round trip. Symbols
// missing from the result fall back to a per-symbol lookup.
func (h *ScanHandler) prefetch(ctx context.Context, log *logger.Logger, symbols []string) map[string]models.Fundamentals {
	if h.fundamentals == nil {
		return nil
	}
	snapshots, err := h.fundamentals.GetFundamentalsBatch(ctx, symbols)
	if err != nil {
		log.Warn("prefetch fundamentals failed", logger.Error(err))
		return nil
	}
	return snapshots
}

var _ pkgkafka.MessageHandler = (*ScanHandler)(nil)

// ScanUseCase queues scans. Without a requester the scan runs in process.
type ScanUseCase struct {
	requester domrepo.ScanRequester
	scanner   *ScanHandler
	log       *logger.Logger
}

func NewScanUseCase(requester domrepo.ScanRequester, scanner *ScanHandler, log *logger.Logger) *ScanUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ScanUseCase{requester: requester, scanner: scanner, log: log.Component("scan")}
}

// Trigger assigns a run id and hands the request off. It returns before the scan finishes.
func (uc *ScanUseCase) Trigger(ctx context.Context, symbols []string) (string, error) {
	symbols = util.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return "", fmt.Errorf("%w: no symbols", models.ErrInsufficientData)
	}
	req := models.ScanRequest{RunID: uuid.NewString(), Symbols: symbols}

	if uc.requester != nil {
		if err := uc.requester.RequestScan(ctx, req); err != nil {
			return "", err
		}
		return req.RunID, nil
	}

	go func() {
		if _, err := uc.scanner.Scan(context.WithoutCancel(ctx), req); err != nil {
			uc.log.Error("in-process scan failed", logger.String("run_id", req.RunID), logger.Error(err))
		}
	}()
	return req.RunID, nil
}
