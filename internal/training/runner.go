package training

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"persona-app/internal/domain/personas"
)

// Queue is the redis list training jobs are pushed onto.
const Queue = "training:queue"

const progressStep = 10

// Store is the persistence surface the runner needs. Terminal transitions
// are conditional on status=training so a redelivered or duplicated job can
// never pull a persona out of ready or failed.
type Store interface {
	Persona(ctx context.Context, id uint) (*personas.Persona, error)
	UpdateProgress(ctx context.Context, id uint, progress int) error
	MarkReady(ctx context.Context, id uint, thumbnailURL string) error
	MarkFailed(ctx context.Context, id uint) error
}

// Runner simulates training: it pops persona ids off a redis queue and
// advances their progress in fixed steps until ready. No model fitting
// happens; this is a placeholder state machine with persisted, observable
// progress.
type Runner struct {
	rdb      *redis.Client
	store    Store
	interval time.Duration
	log      *slog.Logger
}

func NewRunner(rdb *redis.Client, store Store, interval time.Duration, log *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Runner{rdb: rdb, store: store, interval: interval, log: log}
}

// Enqueue schedules a persona for the training simulation.
func (r *Runner) Enqueue(ctx context.Context, personaID uint) error {
	return r.rdb.LPush(ctx, Queue, strconv.FormatUint(uint64(personaID), 10)).Err()
}

// Start blocks on the queue until ctx is cancelled. Each job runs in its own
// goroutine, detached from the request that created the persona.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("training runner started", "queue", Queue)
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := r.rdb.BRPop(ctx, time.Second, Queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("queue pop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		id, err := strconv.ParseUint(result[1], 10, 64)
		if err != nil {
			r.log.Error("discarding malformed job", "payload", result[1])
			continue
		}

		go r.process(ctx, uint(id))
	}
}

func (r *Runner) process(ctx context.Context, personaID uint) {
	persona, err := r.store.Persona(ctx, personaID)
	if err != nil {
		r.log.Error("fetch persona failed", "persona_id", personaID, "error", err)
		return
	}
	if persona == nil || persona.Status != personas.StatusTraining {
		// Already terminal; a redelivered job is a no-op.
		return
	}

	r.log.Info("training started", "persona_id", personaID, "progress", persona.Progress)

	progress := persona.Progress
	for progress < 100 {
		select {
		case <-ctx.Done():
			// Leave the row as training; a restart will pick it up as
			// visibly unfinished rather than silently stuck.
			return
		case <-time.After(r.interval):
		}

		progress += progressStep
		if progress > 100 {
			progress = 100
		}

		if progress < 100 {
			if err := r.store.UpdateProgress(ctx, personaID, progress); err != nil {
				r.fail(personaID, err)
				return
			}
			continue
		}

		thumbnail := ""
		if len(persona.TrainingImages) > 0 {
			thumbnail = persona.TrainingImages[0]
		}
		if err := r.store.MarkReady(ctx, personaID, thumbnail); err != nil {
			r.fail(personaID, err)
			return
		}
		r.log.Info("training complete", "persona_id", personaID)
	}
}

func (r *Runner) fail(personaID uint, cause error) {
	r.log.Error("training failed", "persona_id", personaID, "error", cause)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.MarkFailed(ctx, personaID); err != nil {
		r.log.Error("marking persona failed did not persist", "persona_id", personaID, "error", err)
	}
}
