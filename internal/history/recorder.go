package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/sdbot/core/logger"
	"github.com/m3rciful/sdbot/internal/menu"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/sdapi"
)

const insertTimeout = 5 * time.Second

// Writer is the persistence side of a Store.
type Writer interface {
	Insert(ctx context.Context, rec *Record) error
}

// Recorder tags each generation with a request id and stores the outcome.
// Storage failures are logged and never change the outcome.
type Recorder struct {
	next  menu.Generator
	store Writer
	clock Clock
}

// NewRecorder wraps next. A nil store only assigns request ids.
func NewRecorder(next menu.Generator, store Writer) *Recorder {
	return &Recorder{next: next, store: store, clock: systemClock{}}
}

// Generate implements menu.Generator.
func (r *Recorder) Generate(ctx context.Context, p params.Set) sdapi.Outcome {
	id := uuid.NewString()
	ctx = logger.WithGenID(ctx, id)

	start := r.clock.Now()
	out := r.next.Generate(ctx, p)
	took := r.clock.Now().Sub(start)

	if r.store == nil {
		return out
	}

	rec := FromParams(id, p)
	rec.DurationMS = took.Milliseconds()
	rec.CreatedAt = start
	if out.OK() {
		rec.Status = StatusOK
		rec.ImageBytes = len(out.Image)
	} else {
		rec.Status = StatusFail
		rec.Error = out.Message
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()
	err := r.store.Insert(insertCtx, &rec)
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.insert",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return out
	}
	logger.Debug(ctx, logger.CompHistory, "history.insert",
		slog.String("status", rec.Status),
		slog.Int64("duration_ms", rec.DurationMS),
	)
	return out
}

var _ menu.Generator = (*Recorder)(nil)
