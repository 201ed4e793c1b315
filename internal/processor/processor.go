// Package processor runs the automation loop: device state change in,
// matching process conditions evaluated, conducts out.
package processor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"homehub/internal/conditions"
	"homehub/internal/conducts"
	"homehub/internal/models"
	"homehub/internal/pubsub"
	"homehub/internal/state"
)

// ProcessRepository supplies the active rule set. Loaded fresh on every
// evaluation cycle; the processor never caches it.
type ProcessRepository interface {
	GetAllProcesses(ctx context.Context) ([]models.Process, error)
}

// Processor subscribes to state changes and fires the processes they
// trigger. It keeps no per-rule state between cycles.
type Processor struct {
	states    *state.Manager
	processes ProcessRepository
	evaluator *conditions.Evaluator
	conducts  *conducts.Manager
	logger    zerolog.Logger

	sub *pubsub.Subscription
}

// New creates a processor.
func New(
	states *state.Manager,
	processes ProcessRepository,
	evaluator *conditions.Evaluator,
	conductManager *conducts.Manager,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		states:    states,
		processes: processes,
		evaluator: evaluator,
		conducts:  conductManager,
		logger:    logger,
	}
}

// Start subscribes the processor to state change notifications.
func (p *Processor) Start(ctx context.Context) error {
	if p.sub != nil {
		return fmt.Errorf("processor: already started")
	}
	p.sub = p.states.Subscribe(p.handleStateChanged)
	p.logger.Info().Msg("processor started")
	return nil
}

// Stop unsubscribes from state change notifications.
func (p *Processor) Stop() {
	if p.sub != nil {
		p.sub.Cancel()
		p.sub = nil
	}
	p.logger.Info().Msg("processor stopped")
}

func (p *Processor) handleStateChanged(ctx context.Context, target models.DeviceTarget) error {
	processes, err := p.processes.GetAllProcesses(ctx)
	if err != nil {
		return fmt.Errorf("processor: load processes: %w", err)
	}

	var applicable []models.Process
	for _, process := range processes {
		if process.TriggeredBy(target) {
			applicable = append(applicable, process)
		}
	}
	if len(applicable) == 0 {
		p.logger.Trace().Stringer("target", target).Msg("state change not a trigger, ignored")
		return nil
	}

	// Each process is evaluated on its own; a broken condition fails
	// that process only.
	for _, process := range applicable {
		met, err := p.evaluator.IsMet(ctx, process.Condition)
		if err != nil {
			p.logger.Warn().Err(err).Str("process", process.Name).
				Msg("process condition invalid, recheck your configuration")
			continue
		}
		if !met {
			continue
		}

		p.logger.Info().Str("process", process.Name).Stringer("trigger", target).
			Msg("executing process")
		p.conducts.Publish(ctx, process.Conducts)
	}
	return nil
}
