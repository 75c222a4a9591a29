package node

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/sirupsen/logrus"
)

// manualTimer hands out a single channel to every caller, so each value sent
// on it releases exactly one retry wait.
type manualTimer struct {
	ch chan time.Time
}

func newManualTimer() *manualTimer {
	return &manualTimer{ch: make(chan time.Time)}
}

func (m *manualTimer) factory(time.Duration) <-chan time.Time {
	return m.ch
}

func (m *manualTimer) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(testTimeout):
		t.Fatalf("nobody is waiting on the retry timer")
	}
}

func initNode(tn *testNode) {
	tn.WithState(func(s *NodeState[struct{}]) {
		s.SetID("n1")
		s.MergeTopology([]string{"n1", "n2"})
	})
}

func TestRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	for i := 1; i < 5; i++ {
		if d := p.Next(i); d != 500*time.Millisecond {
			t.Fatalf("default policy should be fixed at 500ms, got %v after %d sends", d, i)
		}
		if p.Exhausted(i * 1000) {
			t.Fatalf("default policy should never give up")
		}
	}

	p = RetryPolicy{
		Interval:    100 * time.Millisecond,
		Multiplier:  2,
		MaxInterval: 300 * time.Millisecond,
		MaxAttempts: 3,
	}
	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}
	for i, e := range expected {
		if d := p.Next(i + 1); d != e {
			t.Fatalf("delay after %d sends should be %v, not %v", i+1, e, d)
		}
	}
	if p.Exhausted(2) || !p.Exhausted(3) {
		t.Fatalf("policy should give up after 3 sends")
	}
}

func TestSendSyncResolvedByReply(t *testing.T) {
	tn := newTestNode(t, nil)
	timer := newManualTimer()
	tn.timerFactory = timer.factory
	initNode(tn)

	tn.run(t)
	defer tn.stop(t)

	call, err := tn.SendSync(context.Background(), "n2", net.Body{"type": "broadcast", "message": 7})
	if err != nil {
		t.Fatal(err)
	}

	req := tn.expectSent(t)
	if id, _ := req.Body.MsgID(); id != call.MsgID {
		t.Fatalf("request msg_id should be %d, got %v", call.MsgID, req.Body)
	}
	if req.Src != "n1" || req.Dest != "n2" {
		t.Fatalf("request should go from n1 to n2, got %s->%s", req.Src, req.Dest)
	}

	// one missed reply, one resend of the identical request
	timer.tick(t)
	resend := tn.expectSent(t)
	if resend.String() != req.String() {
		t.Fatalf("resend should be identical to the request: %v != %v", resend, req)
	}

	tn.deliver(t, "n2", net.Body{"type": "broadcast_ok", "in_reply_to": call.MsgID})

	reply, err := call.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reply.Body.Type() != "broadcast_ok" {
		t.Fatalf("reply should be broadcast_ok, got %v", reply)
	}

	if n := tn.PendingCalls(); n != 0 {
		t.Fatalf("no call should be pending, got %d", n)
	}

	// the retry loop is gone: nobody waits on the timer anymore
	select {
	case timer.ch <- time.Now():
		t.Fatalf("retry loop should have stopped")
	case <-time.After(100 * time.Millisecond):
	}
	tn.expectNothingSent(t, 50*time.Millisecond)
}

func TestSendSyncResendsWithoutReply(t *testing.T) {
	tn := newTestNode(t, nil)
	tn.retryPolicy = RetryPolicy{Interval: 50 * time.Millisecond}
	initNode(tn)

	tn.run(t)
	defer tn.stop(t)

	start := time.Now()
	call, err := tn.SendSync(context.Background(), "n2", net.Body{"type": "add", "delta": 1})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		env := tn.expectSent(t)
		if id, _ := env.Body.MsgID(); id != call.MsgID {
			t.Fatalf("every send should carry msg_id %d, got %v", call.MsgID, env.Body)
		}
	}

	// two resends need two intervals, allow generous scheduling slack
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > testTimeout {
		t.Fatalf("two resends took %v", elapsed)
	}

	select {
	case <-call.Done():
		t.Fatalf("call should still be pending")
	default:
	}
}

func TestSendSyncGivesUp(t *testing.T) {
	tn := newTestNode(t, nil)
	timer := newManualTimer()
	tn.timerFactory = timer.factory
	tn.retryPolicy = RetryPolicy{Interval: time.Second, MaxAttempts: 2}
	initNode(tn)

	tn.run(t)
	defer tn.stop(t)

	call, err := tn.SendSync(context.Background(), "n2", net.Body{"type": "add", "delta": 1})
	if err != nil {
		t.Fatal(err)
	}
	tn.expectSent(t)

	timer.tick(t)
	tn.expectSent(t)

	timer.tick(t)

	if _, err := call.Wait(context.Background()); err != ErrGaveUp {
		t.Fatalf("call should fail with ErrGaveUp, got %v", err)
	}
	if n := tn.PendingCalls(); n != 0 {
		t.Fatalf("the callback should be cancelled, %d pending", n)
	}

	// a late reply is handled like any other envelope
	tn.deliver(t, "n2", net.Body{"type": "add_ok", "in_reply_to": call.MsgID})
	tn.expectNothingSent(t, 100*time.Millisecond)
}

func TestShutdownAbandonsCalls(t *testing.T) {
	tn := newTestNode(t, nil)
	tn.timerFactory = newManualTimer().factory
	initNode(tn)

	tn.run(t)

	call, err := tn.SendSync(context.Background(), "n2", net.Body{"type": "add", "delta": 1})
	if err != nil {
		t.Fatal(err)
	}
	tn.expectSent(t)

	tn.stop(t)

	if _, err := call.Wait(context.Background()); err != ErrShutdown {
		t.Fatalf("call should fail with ErrShutdown, got %v", err)
	}

	if _, err := tn.SendSync(context.Background(), "n2", net.Body{"type": "add"}); err != ErrShutdown {
		t.Fatalf("SendSync after shutdown should fail with ErrShutdown, got %v", err)
	}
}

func TestSendSyncContextCancel(t *testing.T) {
	tn := newTestNode(t, nil)
	tn.timerFactory = newManualTimer().factory
	initNode(tn)

	tn.run(t)
	defer tn.stop(t)

	ctx, cancel := context.WithCancel(context.Background())
	call, err := tn.SendSync(ctx, "n2", net.Body{"type": "add", "delta": 1})
	if err != nil {
		t.Fatal(err)
	}
	tn.expectSent(t)

	cancel()

	if _, err := call.Wait(context.Background()); err != context.Canceled {
		t.Fatalf("call should fail with context.Canceled, got %v", err)
	}
}

// lockedBuffer is an io.Writer that can be read while the node writes to it.
type lockedBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.Lock()
	defer b.Unlock()
	s := strings.TrimSuffix(b.buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestRunOverStream(t *testing.T) {
	input := strings.Join([]string{
		`{"src":"c0","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1"]}}`,
		`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":2,"echo":"one"}}`,
		`{this is not json`,
		`{"src":"c1","dest":"n1","body":{"msg_id":3}}`,
		`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":4,"echo":"two"}}`,
	}, "\n") + "\n"

	registry := NewRegistry[struct{}]()
	registry.RegisterFunc("echo", func(ctx context.Context, n *Node[struct{}], env *net.Envelope) error {
		return n.Reply(env, "echo_ok", net.Body{"echo": env.Body["echo"]})
	})

	conf := config.NewTestConfig(t, common.TestLogLevel)
	out := &lockedBuffer{}
	trans := net.NewStreamTransport(strings.NewReader(input), out, conf.QueueSize, conf.Logger())

	node := NewNode(conf, trans, struct{}{}, registry)

	errCh := make(chan error, 1)
	go func() { errCh <- node.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run should return nil at end of input, got %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatalf("Run did not return at end of input")
	}

	replies := map[uint64]*net.Envelope{}
	for _, l := range out.Lines() {
		env, err := net.ParseEnvelope([]byte(l))
		if err != nil {
			t.Fatalf("invalid output line %q: %v", l, err)
		}
		id, _ := env.Body.InReplyTo()
		replies[id] = env
	}

	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %v", out.Lines())
	}
	if replies[2].Body["echo"] != "one" || replies[4].Body["echo"] != "two" {
		t.Fatalf("echo replies do not match requests: %v", out.Lines())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRunOutputFailureIsFatal(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	quiet := logrus.New()
	quiet.Out = ioutil.Discard

	conf := config.NewTestConfig(t, common.TestLogLevel)
	trans := net.NewStreamTransport(pr, failingWriter{}, conf.QueueSize, logrus.NewEntry(quiet))

	node := NewNode(conf, trans, struct{}{}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- node.Run(context.Background()) }()

	go pw.Write([]byte(`{"src":"c0","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1"}}` + "\n"))

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("Run should fail when the output fails")
		}
	case <-time.After(testTimeout):
		t.Fatalf("Run did not return after the output failed")
	}
}
