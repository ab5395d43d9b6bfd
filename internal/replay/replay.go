// Package replay reads a line-delimited capture file and feeds its
// frames into an Ingress dispatcher with simulated real-time pacing,
// substituting for Transport in REPLAY mode: the same
// inter-entry sleep-by-delta/speed pacing and the same text/binary
// dispatch split, in a line-reader/logging idiom.
package replay

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/clock"
	"github.com/KingSajxxd/f1-relay/internal/codec"
)

// Dispatcher is the subset of ingress.Dispatcher the replay driver needs.
type Dispatcher interface {
	HandleText(raw string, arrival time.Time)
}

// Store is the subset of store.Store the replay driver needs to apply and
// broadcast decoded binary (CarData) entries directly, mirroring how
// the ingress Dispatcher's HandleBinary routes to CarData by convention.
type Store interface {
	Apply(feed string, payload any) bool
}

// Bus is the subset of egress.Bus the replay driver needs to broadcast
// decoded binary entries.
type Bus interface {
	Broadcast(eventType string, data any)
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Data      string `json:"data"`
}

// Driver replays a capture file at a configured speed multiplier.
type Driver struct {
	FilePath   string
	Speed      float64
	Dispatcher Dispatcher
	Store      Store
	Bus        Bus
	Log        zerolog.Logger

	// sleep is overridable for tests.
	sleep func(context.Context, time.Duration) error
}

// New creates a Driver. speed must be positive; callers validate via
// config.Config.Validate before constructing one.
func New(filePath string, speed float64, dispatcher Dispatcher, store Store, bus Bus, log zerolog.Logger) *Driver {
	return &Driver{
		FilePath:   filePath,
		Speed:      speed,
		Dispatcher: dispatcher,
		Store:      store,
		Bus:        bus,
		Log:        log,
		sleep:      ctxSleep,
	}
}

// Run reads the capture file line by line, pacing each entry's dispatch
// by (this.timestamp − prev.timestamp) / speed seconds. A missing file
// aborts the run with an error; malformed lines are logged and skipped;
// a clean EOF returns nil. ctx cancellation aborts mid-replay.
func (d *Driver) Run(ctx context.Context) error {
	f, err := os.Open(d.FilePath)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	speed := d.Speed
	if speed <= 0 {
		speed = 1.0
	}

	reader := bufio.NewReader(f)
	var lastTimestamp time.Time
	haveLast := false
	lineNo := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := reader.ReadString('\n')
		lineNo++
		if len(line) > 0 {
			if perr := d.processLine(ctx, line, lineNo, &lastTimestamp, &haveLast, speed); perr != nil {
				return perr
			}
		}
		if err != nil {
			if err == io.EOF {
				d.Log.Info().Msg("replay finished")
				return nil
			}
			return fmt.Errorf("read replay file: %w", err)
		}
	}
}

func (d *Driver) processLine(ctx context.Context, line string, lineNo int, lastTimestamp *time.Time, haveLast *bool, speed float64) error {
	var e entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		d.Log.Warn().Int("line", lineNo).Err(err).Msg("skipping malformed replay line")
		return nil
	}

	ts, ok := clock.ParseISO8601(e.Timestamp)
	if !ok {
		d.Log.Warn().Int("line", lineNo).Str("timestamp", e.Timestamp).Msg("skipping replay line with unparseable timestamp")
		return nil
	}

	if *haveLast {
		delay := ts.Sub(*lastTimestamp)
		if delay > 0 {
			if err := d.sleep(ctx, time.Duration(float64(delay)/speed)); err != nil {
				return err
			}
		}
	}
	*lastTimestamp = ts
	*haveLast = true

	switch e.Type {
	case "text":
		d.Dispatcher.HandleText(e.Data, ts)
	case "binary":
		raw, err := base64.StdEncoding.DecodeString(e.Data)
		if err != nil {
			d.Log.Warn().Int("line", lineNo).Err(err).Msg("skipping replay binary entry with invalid base64")
			return nil
		}
		decoded, ok := codec.Decode(raw)
		if !ok {
			d.Log.Warn().Int("line", lineNo).Msg("skipping undecodable replay binary entry")
			return nil
		}
		d.Store.Apply("CarData", decoded)
		d.Bus.Broadcast("CarData", decoded)
	default:
		d.Log.Warn().Int("line", lineNo).Str("type", e.Type).Msg("skipping replay line with unknown type")
	}
	return nil
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
