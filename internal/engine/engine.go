// Package engine wires Store, Egress, and Ingress into one unit usable by
// both live (Transport) and replay run modes: construct the shared
// collaborators once, then hand them to whichever ingestion driver the
// configured mode selects.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/egress"
	"github.com/KingSajxxd/f1-relay/internal/ingress"
	"github.com/KingSajxxd/f1-relay/internal/store"
)

// Engine holds the shared Store, Bus, and Dispatcher, independent of
// which ingestion driver (Transport or Replay) is feeding it.
type Engine struct {
	Store      *store.Store
	Bus        *egress.Bus
	Dispatcher *ingress.Dispatcher
	log        zerolog.Logger
}

// New constructs a fresh Engine. subscriberBufferSize bounds each
// downstream subscriber's pending-message queue.
func New(subscriberBufferSize int, log zerolog.Logger) *Engine {
	s := store.New(log.With().Str("component", "store").Logger())
	bus := egress.New(subscriberBufferSize, log.With().Str("component", "egress").Logger())
	d := ingress.New(s, bus, log.With().Str("component", "ingress").Logger())
	return &Engine{Store: s, Bus: bus, Dispatcher: d, log: log}
}

// Shutdown releases all subscribers and persists the final snapshot to
// finalStatePath as part of graceful shutdown. ctx is unused today (there
// is nothing to cancel beyond closing subscribers and writing the file)
// but is accepted for symmetry with the rest of the shutdown sequence and
// to allow a future bounded write.
func (e *Engine) Shutdown(_ context.Context, finalStatePath string) error {
	e.Bus.CloseAll()
	e.log.Info().Str("path", finalStatePath).Msg("writing final state")
	return e.Store.WriteFinalState(finalStatePath)
}
