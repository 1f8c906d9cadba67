package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenabeat/resultgate/internal/metrics"
	"github.com/arenabeat/resultgate/internal/watch"
	"github.com/arenabeat/resultgate/pkg/domain"
)

// EventSink receives protocol events in emission order. Send returns an
// error when the peer is no longer reachable; the session stops without a
// terminal event in that case.
type EventSink interface {
	Send(ev domain.Event) error
}

// StreamService runs one wait/emit session per inbound streaming request.
type StreamService interface {
	Run(ctx context.Context, requestID any, sink EventSink)
}

type streamService struct {
	watcher    *watch.Watcher
	logger     *slog.Logger
	now        func() time.Time
	pollPeriod time.Duration
	window     time.Duration
	ceiling    time.Duration
}

func NewStreamService(watcher *watch.Watcher, logger *slog.Logger, now func() time.Time, pollPeriod, window, ceiling time.Duration) StreamService {
	if now == nil {
		now = time.Now
	}
	if pollPeriod <= 0 {
		pollPeriod = 3 * time.Second
	}
	if window <= 0 {
		window = 600 * time.Second
	}
	if ceiling <= 0 {
		ceiling = 1500 * time.Second
	}
	return &streamService{
		watcher:    watcher,
		logger:     logger,
		now:        now,
		pollPeriod: pollPeriod,
		window:     window,
		ceiling:    ceiling,
	}
}

// Run emits one Working event up front, then polls the watch patterns on a
// fixed period until a fresh result appears, the ceiling elapses, or the
// peer goes away. Exactly one terminal event is emitted on the first two
// paths; none on the third. Sessions share nothing, so concurrent runs
// against the same directory classify candidates independently.
func (s *streamService) Run(ctx context.Context, requestID any, sink EventSink) {
	taskID := uuid.NewString()
	start := s.now()
	logger := s.logger.With("task_id", taskID)

	ctx, span := otel.Tracer("resultgate/stream").Start(ctx, "resultgate.stream.session",
		trace.WithAttributes(attribute.String("resultgate.task_id", taskID)),
	)
	defer span.End()

	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	outcome := metrics.OutcomeDisconnected
	defer func() {
		metrics.SessionsFinishedTotal.WithLabelValues(outcome).Inc()
		metrics.SessionDurationSeconds.WithLabelValues(outcome).Observe(s.now().Sub(start).Seconds())
		span.SetAttributes(attribute.String("resultgate.outcome", outcome))
		logger.Info("stream session finished", "outcome", outcome, "elapsed", s.now().Sub(start).String())
	}()

	if err := sink.Send(domain.WorkingEvent(requestID, taskID, start)); err != nil {
		logger.Warn("initial event not delivered", "err", err)
		return
	}

	heartbeats := 0
	ticker := time.NewTicker(s.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Peer is gone; stop polling, no terminal event.
			return
		case <-ticker.C:
		}

		now := s.now()

		if now.Sub(start) >= s.ceiling {
			if err := sink.Send(domain.FailedEvent(requestID, taskID, now, "timed out waiting for result")); err != nil {
				logger.Warn("timeout event not delivered", "err", err)
				return
			}
			outcome = metrics.OutcomeTimeout
			return
		}

		scanStart := time.Now()
		cand, ok, err := s.watcher.Latest(now, s.window)
		metrics.ScanDurationSeconds.Observe(time.Since(scanStart).Seconds())
		if err != nil {
			metrics.ScanErrorsTotal.Inc()
			logger.Warn("scan failed", "err", err)
		}

		if !ok {
			heartbeats++
			if err := sink.Send(domain.WorkingEvent(requestID, taskID, now)); err != nil {
				return
			}
			metrics.HeartbeatsTotal.Inc()
			continue
		}

		// Read failures yield an empty artifact; the session still
		// completes rather than hanging the client.
		content := watch.ReadContent(cand)
		artifact := domain.NewTextArtifact(cand.Name(), content)
		if err := sink.Send(domain.CompletedEvent(requestID, taskID, now, artifact)); err != nil {
			logger.Warn("completion event not delivered", "err", err)
			return
		}
		outcome = metrics.OutcomeCompleted
		span.SetAttributes(
			attribute.String("resultgate.artifact", cand.Name()),
			attribute.Int("resultgate.heartbeats", heartbeats),
		)
		logger.Info("result delivered", "artifact", cand.Name(), "bytes", len(content), "heartbeats", heartbeats)
		return
	}
}
