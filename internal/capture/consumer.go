package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-meet/internal/audio"
	"github.com/petems/whisper-meet/internal/handoff"
)

// DefaultPoll is the consumer's idle wait between slot checks
const DefaultPoll = 100 * time.Millisecond

// Processor handles one utterance. Calls are strictly sequential.
type Processor interface {
	Process(ctx context.Context, u audio.Utterance) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, u audio.Utterance) error

func (f ProcessorFunc) Process(ctx context.Context, u audio.Utterance) error {
	return f(ctx, u)
}

// Consumer drains the handoff slot into a Processor
type Consumer struct {
	in        *handoff.Slot[audio.Utterance]
	proc      Processor
	poll      time.Duration
	log       zerolog.Logger
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewConsumer creates a consumer; poll <= 0 uses DefaultPoll
func NewConsumer(in *handoff.Slot[audio.Utterance], proc Processor, poll time.Duration, log zerolog.Logger) *Consumer {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Consumer{in: in, proc: proc, poll: poll, log: log}
}

// Run polls until stop is done, then processes whatever is still pending and
// returns. Each utterance is processed with work, which is independent of stop:
// cancelling stop never interrupts an in-flight call, cancelling work does.
func (c *Consumer) Run(stop, work context.Context) {
	for {
		u, ok := c.in.Pop(stop, c.poll)
		if ok {
			c.process(work, u)
			continue
		}
		if stop.Err() != nil {
			break
		}
	}

	if work.Err() != nil {
		return
	}
	if u, ok := c.in.TryPop(); ok {
		c.process(work, u)
	}
}

// Processed returns how many utterances the processor accepted
func (c *Consumer) Processed() uint64 {
	return c.processed.Load()
}

// Failed returns how many utterances the processor rejected
func (c *Consumer) Failed() uint64 {
	return c.failed.Load()
}

func (c *Consumer) process(ctx context.Context, u audio.Utterance) {
	if err := c.proc.Process(ctx, u); err != nil {
		c.failed.Add(1)
		c.log.Error().Err(err).Uint64("seq", u.Seq).Msg("Utterance processing failed")
		return
	}
	c.processed.Add(1)
}
