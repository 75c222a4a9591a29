package node

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/node/state"
	"github.com/mosaicnetworks/nodekit/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node is a protocol node. It consumes envelopes from a transport, dispatches
// each one on its own goroutine to the handler registered for its type, and
// correlates replies with the requests sent through SendSync.
type Node[T any] struct {
	state.Manager

	conf   *config.Config
	logger *logrus.Entry

	nodeState *NodeState[T]
	stateLock sync.Mutex

	trans net.Transport
	netCh <-chan *net.Envelope

	registry  *Registry[T]
	callbacks *CallbackStore

	retryPolicy  RetryPolicy
	timerFactory timerFactory
	retries      sync.WaitGroup

	// ctx lives as long as the node; cancelling it stops every retry loop.
	ctx    context.Context
	cancel context.CancelFunc

	errCh        chan error
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	start          time.Time
	received       uint64
	dispatchErrors uint64
}

// NewNode is a factory method that returns a Node instance. data is the
// initial protocol payload of the state. A nil registry only handles init and
// topology.
func NewNode[T any](conf *config.Config,
	trans net.Transport,
	data T,
	registry *Registry[T],
) *Node[T] {
	if registry == nil {
		registry = NewRegistry[T]()
	}

	ctx, cancel := context.WithCancel(context.Background())

	node := Node[T]{
		conf:         conf,
		logger:       conf.Logger(),
		nodeState:    NewNodeState(data),
		trans:        trans,
		netCh:        trans.Consumer(),
		registry:     registry,
		callbacks:    NewCallbackStore(),
		retryPolicy:  NewRetryPolicy(conf),
		timerFactory: time.After,
		ctx:          ctx,
		cancel:       cancel,
		errCh:        make(chan error, 1),
		shutdownCh:   make(chan struct{}),
		start:        time.Now(),
	}

	return &node
}

// Run reads envelopes until the input ends, ctx is done, Shutdown is called or
// the transport fails. It then drains: in-flight handlers get up to
// ShutdownTimeout to complete, pending requests are abandoned and the
// transport is closed. Run returns nil on a clean end of input.
func (n *Node[T]) Run(ctx context.Context) error {
	n.SetState(state.Serving)

	listenCh := make(chan error, 1)
	go func() {
		listenCh <- n.trans.Listen()
	}()

	n.logger.Debug("Serving")

	var err error

LOOP:
	for {
		select {
		case env := <-n.netCh:
			n.dispatchAsync(env)
		case err = <-listenCh:
			// the reader has stopped, whatever it queued is still dispatched
			n.drainQueue()
			if err != nil {
				n.logger.WithError(err).Error("Input failed")
			} else {
				n.logger.Debug("Input closed")
			}
			break LOOP
		case err = <-n.errCh:
			n.logger.WithError(err).Error("Output failed")
			break LOOP
		case <-ctx.Done():
			n.logger.Debug("Context done")
			break LOOP
		case <-n.shutdownCh:
			break LOOP
		}
	}

	n.drain()

	return err
}

// Shutdown makes Run return.
func (n *Node[T]) Shutdown() {
	n.shutdownOnce.Do(func() {
		close(n.shutdownCh)
	})
}

func (n *Node[T]) drainQueue() {
	for {
		select {
		case env := <-n.netCh:
			n.dispatchAsync(env)
		default:
			return
		}
	}
}

func (n *Node[T]) drain() {
	n.SetState(state.Draining)

	done := make(chan struct{})
	go func() {
		n.WaitRoutines()
		close(done)
	}()

	timeout := n.conf.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}

	select {
	case <-done:
	case <-time.After(timeout):
		n.logger.WithField("routines", n.Routines()).Warn("Timed out waiting for handlers")
	}

	n.cancel()
	n.retries.Wait()

	n.SetState(state.Shutdown)

	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Error("Closing transport")
	}

	n.logger.Debug("Shutdown")
}

func (n *Node[T]) dispatchAsync(env *net.Envelope) {
	atomic.AddUint64(&n.received, 1)
	telemetry.InFlight.Inc()
	n.GoFunc(func() {
		defer telemetry.InFlight.Dec()
		n.dispatch(env)
	})
}

// dispatch runs correlation, then type lookup, then the handler.
func (n *Node[T]) dispatch(env *net.Envelope) {
	typ := env.Body.Type()

	logger := n.logger.WithFields(logrus.Fields{
		"node": n.ID(),
		"type": typ,
		"src":  env.Src,
	})

	telemetry.ReceivedTotal.WithLabelValues(typ).Inc()

	resolved := n.callbacks.Resolve(env)

	h, ok := n.registry.Lookup(typ)
	if !ok {
		if resolved {
			logger.Debug("Reply resolved")
			telemetry.DroppedTotal.WithLabelValues(telemetry.ReasonResolvedReply).Inc()
			return
		}
		err := common.Errorf(typ, common.UnknownType, "no handler from %s", env.Src)
		logger.WithError(err).Error("Dropping envelope")
		telemetry.DroppedTotal.WithLabelValues(telemetry.ReasonUnknownType).Inc()
		return
	}

	start := time.Now()
	err := n.handle(h, env)
	telemetry.ObserveHandler(typ, start)

	if err != nil {
		atomic.AddUint64(&n.dispatchErrors, 1)
		logger.WithError(err).Error("Handler failed")
		if _, ok := err.(handlerPanic); ok {
			telemetry.DroppedTotal.WithLabelValues(telemetry.ReasonHandlerPanic).Inc()
		} else {
			telemetry.DroppedTotal.WithLabelValues(telemetry.ReasonHandlerError).Inc()
		}
	}
}

type handlerPanic struct {
	value interface{}
}

func (p handlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v", p.value)
}

// handle calls h and turns a panic into an error. WithState releases the
// state lock on the way out.
func (n *Node[T]) handle(h Handler[T], env *net.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = handlerPanic{r}
		}
	}()
	return h.Handle(n.ctx, n, env)
}

// Send writes env to the transport. A write failure other than a closed
// transport is fatal and makes Run return it.
func (n *Node[T]) Send(env *net.Envelope) error {
	if err := n.trans.Send(env); err != nil {
		if err == net.ErrTransportShutdown {
			return common.NewNodeErr(env.Body.Type(), common.TransportClosed, "transport is shut down")
		}
		telemetry.DroppedTotal.WithLabelValues(telemetry.ReasonSendError).Inc()
		select {
		case n.errCh <- err:
		default:
		}
		return err
	}
	telemetry.SentTotal.WithLabelValues(env.Body.Type()).Inc()
	return nil
}

// Reply answers req with a body of type typ carrying extra. Nothing is sent
// if req has no msg_id.
func (n *Node[T]) Reply(req *net.Envelope, typ string, extra net.Body) error {
	reply, err := net.BuildReply(n.ID(), req, typ, extra)
	if err != nil {
		return err
	}
	return n.Send(reply)
}

// WithState runs fn with exclusive access to the state. fn must not block on
// I/O or call SendSync.
func (n *Node[T]) WithState(fn func(s *NodeState[T])) {
	n.stateLock.Lock()
	defer n.stateLock.Unlock()
	fn(n.nodeState)
}

// ID returns the node id, or "" before init.
func (n *Node[T]) ID() string {
	n.stateLock.Lock()
	defer n.stateLock.Unlock()
	return n.nodeState.ID()
}

// Topology returns a sorted snapshot of the known peers.
func (n *Node[T]) Topology() []string {
	n.stateLock.Lock()
	defer n.stateLock.Unlock()
	return n.nodeState.Topology()
}

// Peers returns the topology without the node itself and the given ids.
func (n *Node[T]) Peers(exclude ...string) []string {
	n.stateLock.Lock()
	self := n.nodeState.ID()
	topo := n.nodeState.Topology()
	n.stateLock.Unlock()

	res := make([]string, 0, len(topo))
LOOP:
	for _, p := range topo {
		if p == self {
			continue
		}
		for _, e := range exclude {
			if p == e {
				continue LOOP
			}
		}
		res = append(res, p)
	}
	return res
}

// Logger returns the node logger.
func (n *Node[T]) Logger() *logrus.Entry {
	return n.logger
}

// PendingCalls returns the number of requests waiting for a reply.
func (n *Node[T]) PendingCalls() int {
	return n.callbacks.Len()
}

// GetStats returns processing stats.
func (n *Node[T]) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	var id string
	var topoSize int
	var msgCount uint64
	n.WithState(func(s *NodeState[T]) {
		id = s.ID()
		topoSize = len(s.topology)
		msgCount = s.MsgCount()
	})

	s := map[string]string{
		"id":                id,
		"state":             n.GetState().String(),
		"topology_size":     strconv.Itoa(topoSize),
		"msg_count":         strconv.FormatUint(msgCount, 10),
		"pending_callbacks": strconv.Itoa(n.callbacks.Len()),
		"in_flight":         strconv.Itoa(n.Routines()),
		"received":          strconv.FormatUint(atomic.LoadUint64(&n.received), 10),
		"dispatch_errors":   strconv.FormatUint(atomic.LoadUint64(&n.dispatchErrors), 10),
		"time_elapsed":      strconv.FormatFloat(timeElapsed.Seconds(), 'f', 2, 64),
		"handlers":          fmt.Sprint(n.registry.Types()),
	}
	return s
}
