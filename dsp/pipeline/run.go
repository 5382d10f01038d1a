package pipeline

import (
	"context"
	"errors"

	"github.com/cwbudde/algo-spatial/dsp/buffer"
	"github.com/cwbudde/algo-spatial/dsp/core"
)

// Run processes buffers from src until src is closed or ctx is done,
// sending each result to dst in submission order. Cancellation is checked
// between buffers only; a buffer in flight is always finished. The
// consumer of dst hands the output buffers back with Release. When the
// pool is exhausted Run waits for such a Release and retries the same
// input. Input buffers stay owned by the producer.
func (o *Orchestrator) Run(ctx context.Context, src <-chan *buffer.Buffer, dst chan<- *buffer.Buffer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-src:
			if !ok {
				return nil
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			out, err := o.processWaiting(ctx, in)
			if err != nil {
				return err
			}

			select {
			case dst <- out:
			case <-ctx.Done():
				o.Release(out)
				return ctx.Err()
			}
		}
	}
}

// processWaiting calls Process and, while the pool is exhausted, blocks
// until a buffer is released or ctx is done.
func (o *Orchestrator) processWaiting(ctx context.Context, in *buffer.Buffer) (*buffer.Buffer, error) {
	for {
		out, err := o.Process(in)
		if !errors.Is(err, core.ErrResourceExhausted) {
			return out, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.freed:
		}
	}
}
