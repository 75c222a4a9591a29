package node

import (
	"math/rand"
	"sort"
)

// msgCountSeed bounds the random starting point of the message counter.
const msgCountSeed = 10000

// NodeState is the state shared by all the dispatch goroutines of a node. It
// holds the generic identity, topology and message counter, and the protocol
// payload in Data. NodeState is not safe for concurrent use; the Node guards
// it with a single lock and only exposes it through Node.WithState.
type NodeState[T any] struct {
	id       string
	topology map[string]struct{}
	msgCount uint64

	// Data is the protocol-specific part of the state.
	Data T
}

// NewNodeState creates a NodeState with an empty id and topology, and a
// message counter seeded from a random value in [0, 10000).
func NewNodeState[T any](data T) *NodeState[T] {
	return &NodeState[T]{
		topology: make(map[string]struct{}),
		msgCount: uint64(rand.Int63n(msgCountSeed)),
		Data:     data,
	}
}

// ID returns the node id, or "" before init.
func (s *NodeState[T]) ID() string {
	return s.id
}

// SetID assigns the node id. The id can only be set once; SetID reports
// whether this call assigned it.
func (s *NodeState[T]) SetID(id string) bool {
	if s.id != "" || id == "" {
		return false
	}
	s.id = id
	return true
}

// Topology returns a sorted copy of the known peer ids.
func (s *NodeState[T]) Topology() []string {
	res := make([]string, 0, len(s.topology))
	for id := range s.topology {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

// MergeTopology adds ids to the topology and returns the number of ids that
// were not known yet. The topology only grows.
func (s *NodeState[T]) MergeTopology(ids []string) int {
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.topology[id]; !ok {
			s.topology[id] = struct{}{}
			added++
		}
	}
	return added
}

// MsgCount returns the last minted message id.
func (s *NodeState[T]) MsgCount() uint64 {
	return s.msgCount
}

// SetMsgCount overrides the message counter.
func (s *NodeState[T]) SetMsgCount(c uint64) {
	s.msgCount = c
}

// NextMsgID increments the message counter and returns the new value.
func (s *NodeState[T]) NextMsgID() uint64 {
	s.msgCount++
	return s.msgCount
}
