package node

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/telemetry"
	"github.com/sirupsen/logrus"
)

var (
	// ErrGaveUp is the error of a Call whose retry policy ran out of attempts
	// before a reply arrived.
	ErrGaveUp = errors.New("no reply after max attempts")

	// ErrShutdown is the error of a Call that was still waiting for a reply
	// when the node shut down.
	ErrShutdown = errors.New("node is shutting down")
)

// RetryPolicy controls how unacknowledged requests are resent. The zero
// MaxAttempts never gives up.
type RetryPolicy struct {
	// Interval is the delay between the first send and the first resend.
	Interval time.Duration
	// Multiplier grows the delay after every resend. Values <= 1 keep it fixed.
	Multiplier float64
	// MaxInterval caps the delay. 0 means no cap.
	MaxInterval time.Duration
	// MaxAttempts caps the number of sends, the first one included.
	MaxAttempts int
}

// DefaultRetryPolicy resends every 500ms until a reply arrives.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Interval:   config.DefaultRetryInterval,
		Multiplier: 1,
	}
}

// NewRetryPolicy reads the retry settings of conf.
func NewRetryPolicy(conf *config.Config) RetryPolicy {
	p := RetryPolicy{
		Interval:    conf.RetryInterval,
		Multiplier:  conf.RetryMultiplier,
		MaxInterval: conf.RetryMaxInterval,
		MaxAttempts: conf.RetryMaxAttempts,
	}
	if p.Interval <= 0 {
		p.Interval = config.DefaultRetryInterval
	}
	return p
}

// Next returns the delay to wait after the given number of sends.
func (p RetryPolicy) Next(sends int) time.Duration {
	d := p.Interval
	if p.Multiplier > 1 && sends > 1 {
		f := float64(p.Interval) * math.Pow(p.Multiplier, float64(sends-1))
		if f >= math.MaxInt64 {
			d = math.MaxInt64
		} else {
			d = time.Duration(f)
		}
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// Exhausted reports whether no further send is allowed after the given number
// of sends.
func (p RetryPolicy) Exhausted(sends int) bool {
	return p.MaxAttempts > 0 && sends >= p.MaxAttempts
}

type timerFactory func(time.Duration) <-chan time.Time

// Call is a request sent with SendSync. Done is closed once the reply has
// arrived, or once the call was abandoned, in which case Err is set.
type Call struct {
	MsgID   uint64
	Request *net.Envelope

	done  chan struct{}
	once  sync.Once
	reply *net.Envelope
	err   error
}

func newCall(msgID uint64, req *net.Envelope) *Call {
	return &Call{
		MsgID:   msgID,
		Request: req,
		done:    make(chan struct{}),
	}
}

// Done ...
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Reply returns the reply, or nil while the call is pending or if it failed.
func (c *Call) Reply() *net.Envelope {
	select {
	case <-c.done:
		return c.reply
	default:
		return nil
	}
}

// Err returns the reason the call was abandoned, if it was.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the call completes or ctx is done.
func (c *Call) Wait(ctx context.Context) (*net.Envelope, error) {
	select {
	case <-c.done:
		return c.reply, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Call) finish(reply *net.Envelope, err error) {
	c.once.Do(func() {
		c.reply = reply
		c.err = err
		close(c.done)
	})
}

// SendSync sends body to dest with a fresh msg_id and resends it until a reply
// with the matching in_reply_to arrives. It returns as soon as the first send
// is done; the returned Call tracks the exchange. Resends stop when ctx is
// done, when the retry policy gives up, or when the node shuts down.
//
// SendSync must not be called from inside WithState.
func (n *Node[T]) SendSync(ctx context.Context, dest string, body net.Body) (*Call, error) {
	if n.ctx.Err() != nil {
		return nil, ErrShutdown
	}

	var msgID uint64
	var src string
	n.WithState(func(s *NodeState[T]) {
		msgID = s.NextMsgID()
		src = s.ID()
	})

	reqBody := body.Clone()
	reqBody[net.FieldMsgID] = msgID

	req := &net.Envelope{
		Src:  src,
		Dest: dest,
		Body: reqBody,
	}

	call := newCall(msgID, req)
	n.callbacks.Register(msgID, func(reply *net.Envelope) {
		call.finish(reply, nil)
	})

	n.logger.WithFields(logrus.Fields{
		"node":   src,
		"dest":   dest,
		"msg_id": msgID,
	}).Debug("SendSync")

	if err := n.Send(req); err != nil {
		n.callbacks.Cancel(msgID)
		call.finish(nil, err)
		return nil, err
	}

	n.retries.Add(1)
	go n.retry(ctx, call)

	return call, nil
}

// retry resends call.Request until the call is resolved or abandoned.
func (n *Node[T]) retry(ctx context.Context, call *Call) {
	defer n.retries.Done()

	abandon := func(err error, reason string) {
		if n.callbacks.Cancel(call.MsgID) {
			telemetry.DroppedTotal.WithLabelValues(reason).Inc()
		}
		call.finish(nil, err)
	}

	for sends := 1; ; sends++ {
		select {
		case <-call.done:
			return
		case <-ctx.Done():
			abandon(ctx.Err(), telemetry.ReasonRetryCancelled)
			return
		case <-n.ctx.Done():
			abandon(ErrShutdown, telemetry.ReasonRetryCancelled)
			return
		case <-n.timerFactory(n.retryPolicy.Next(sends)):
		}

		select {
		case <-call.done:
			return
		default:
		}

		logger := n.logger.WithFields(logrus.Fields{
			"node":   n.ID(),
			"dest":   call.Request.Dest,
			"msg_id": call.MsgID,
			"sends":  sends,
		})

		if n.retryPolicy.Exhausted(sends) {
			logger.Warn("No reply, giving up")
			abandon(ErrGaveUp, telemetry.ReasonRetryGaveUp)
			return
		}

		logger.Debug("No reply in time, sending again")

		if err := n.Send(call.Request); err != nil {
			if common.IsNodeErr(err, common.TransportClosed) {
				abandon(ErrShutdown, telemetry.ReasonRetryCancelled)
				return
			}
			logger.WithError(err).Error("Resend failed")
			continue
		}

		telemetry.ResendsTotal.Inc()
	}
}
