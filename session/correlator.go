package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/visionair/internal/logging"
	"github.com/muurk/visionair/protocol"
)

// Correlator matches response packets from the notification stream to
// the single command in flight. Matching is by packet type: an exchange
// declares the set of types its command produces, and completes when
// each has arrived exactly once. Everything else on the stream is
// forwarded to the unsolicited handler.
type Correlator struct {
	mu      sync.Mutex
	pending *exchange

	// unsolicited receives frames that no exchange claimed: periodic
	// device chatter, burst packets arriving after a timeout, duplicates.
	unsolicited func(*protocol.Frame)
}

type exchange struct {
	want      map[byte]*protocol.Frame
	remaining int
	done      chan map[byte]*protocol.Frame
	cancelled chan struct{}
}

// NewCorrelator creates a correlator. unsolicited may be nil, in which
// case unclaimed frames are dropped after logging.
func NewCorrelator(unsolicited func(*protocol.Frame)) *Correlator {
	return &Correlator{unsolicited: unsolicited}
}

// Exchange is one pending command/response pairing. Exactly one may
// exist per correlator at a time.
type Exchange struct {
	c  *Correlator
	ex *exchange
}

// Expect registers the response types the next command will produce.
// Returns ErrAlreadyAwaiting while a previous exchange is pending; the
// caller sends the command only after Expect succeeds, so a response
// can never race its own registration.
func (c *Correlator) Expect(types ...byte) (*Exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return nil, ErrAlreadyAwaiting
	}

	ex := &exchange{
		want:      make(map[byte]*protocol.Frame, len(types)),
		remaining: len(types),
		done:      make(chan map[byte]*protocol.Frame, 1),
		cancelled: make(chan struct{}),
	}
	for _, t := range types {
		ex.want[t] = nil
	}
	c.pending = ex
	return &Exchange{c: c, ex: ex}, nil
}

// Wait blocks until every expected packet has arrived, the deadline
// passes, the context is done, or the exchange is cancelled. On any
// failure the exchange is torn down and partial responses are
// discarded; a response arriving later is treated as unsolicited, never
// matched to a future exchange.
func (e *Exchange) Wait(ctx context.Context, timeout time.Duration) (map[byte]*protocol.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case got := <-e.ex.done:
		return got, nil
	case <-timer.C:
		if got, ok := e.takeDone(); ok {
			return got, nil
		}
		return nil, ErrResponseTimeout
	case <-ctx.Done():
		if got, ok := e.takeDone(); ok {
			return got, nil
		}
		return nil, ctx.Err()
	case <-e.ex.cancelled:
		return nil, ErrCancelled
	}
}

// Abort tears the exchange down without waiting, e.g. when the command
// write itself failed.
func (e *Exchange) Abort() {
	e.takeDone()
}

// takeDone detaches the exchange and drains a completion that may have
// landed concurrently. ok is true when the full response did arrive.
func (e *Exchange) takeDone() (map[byte]*protocol.Frame, bool) {
	e.c.mu.Lock()
	if e.c.pending == e.ex {
		e.c.pending = nil
	}
	e.c.mu.Unlock()

	select {
	case got := <-e.ex.done:
		return got, true
	default:
		return nil, false
	}
}

// Cancel aborts the pending exchange, if any. Its waiter returns
// ErrCancelled. Used on transport reconnect.
func (c *Correlator) Cancel() {
	c.mu.Lock()
	ex := c.pending
	c.pending = nil
	c.mu.Unlock()

	if ex != nil {
		close(ex.cancelled)
	}
}

// HandleFrame routes one decoded frame: to the pending exchange when
// its type is expected and not yet seen, otherwise to the unsolicited
// handler. A second frame of an already satisfied type counts as
// unsolicited, so device chatter during a burst cannot corrupt the
// response set.
func (c *Correlator) HandleFrame(f *protocol.Frame) {
	c.mu.Lock()
	if ex := c.pending; ex != nil {
		if prev, wanted := ex.want[f.Type]; wanted && prev == nil {
			ex.want[f.Type] = f
			ex.remaining--
			if ex.remaining == 0 {
				c.pending = nil
				c.mu.Unlock()
				ex.done <- ex.want
				return
			}
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	if c.unsolicited != nil {
		c.unsolicited(f)
		return
	}
	logging.Debug("Dropping unclaimed packet",
		zap.String("type", protocol.PacketTypeName(f.Type)),
	)
}

// HandleNotify decodes one raw notification and routes it. Packets that
// fail to decode are logged and dropped; a corrupt notification must
// never fail an unrelated exchange.
func (c *Correlator) HandleNotify(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		logging.Warn("Discarding undecodable notification",
			zap.Error(err),
			zap.Int("length", len(data)),
		)
		logging.LogRawBytes("notification", data)
		return
	}
	logging.LogPacket("rx", protocol.PacketTypeName(f.Type), f.Raw)
	c.HandleFrame(f)
}
