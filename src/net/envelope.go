package net

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mosaicnetworks/nodekit/src/common"
)

// Well-known body fields.
const (
	FieldType      = "type"
	FieldMsgID     = "msg_id"
	FieldInReplyTo = "in_reply_to"
)

// Body is the open-ended payload of an Envelope. It always carries a "type"
// and, depending on its role, a "msg_id" or an "in_reply_to".
type Body map[string]interface{}

// Envelope is a routed message. Envelopes are never mutated once built; a
// reply or a forwarded copy is a new Envelope with a cloned Body.
type Envelope struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Body Body   `json:"body"`
}

// ParseEnvelope decodes a single line of input. Numbers are kept as
// json.Number so that 64-bit ids are not rounded through float64.
func ParseEnvelope(line []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, common.Errorf("envelope", common.MalformedEnvelope, "%v", err)
	}

	if env.Body == nil {
		return nil, common.NewNodeErr("envelope", common.MalformedEnvelope, "missing body")
	}

	if env.Body.Type() == "" {
		return nil, common.NewNodeErr("envelope", common.MalformedEnvelope, "missing body type")
	}

	return &env, nil
}

// Marshal returns the single-line JSON encoding of the Envelope, without
// trailing newline.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// String ...
func (e *Envelope) String() string {
	b, err := e.Marshal()
	if err != nil {
		return fmt.Sprintf("%s->%s %v", e.Src, e.Dest, e.Body)
	}
	return string(b)
}

// BuildReply constructs the reply to req, addressed back to its source. It
// fails with MissingCorrelationField when req has no msg_id; in that case
// nothing must be sent.
func BuildReply(from string, req *Envelope, typ string, extra Body) (*Envelope, error) {
	msgID, ok := req.Body.MsgID()
	if !ok {
		return nil, common.Errorf(req.Body.Type(), common.MissingCorrelationField,
			"cannot reply to %s without msg_id", req.Src)
	}

	body := extra.Clone()
	body[FieldType] = typ
	body[FieldInReplyTo] = msgID

	return &Envelope{
		Src:  from,
		Dest: req.Src,
		Body: body,
	}, nil
}

/*******************************************************************************
Body accessors
*******************************************************************************/

// Type returns the type tag, or "" if it is missing or not a string.
func (b Body) Type() string {
	s, _ := b.String(FieldType)
	return s
}

// MsgID returns the request id.
func (b Body) MsgID() (uint64, bool) {
	return b.Uint64(FieldMsgID)
}

// InReplyTo returns the id of the request this body answers.
func (b Body) InReplyTo() (uint64, bool) {
	return b.Uint64(FieldInReplyTo)
}

// String returns the string value of key.
func (b Body) String(key string) (string, bool) {
	s, ok := b[key].(string)
	return s, ok
}

// Uint64 returns the non-negative integer value of key. It accepts the
// json.Number produced by ParseEnvelope as well as Go integer types used when
// bodies are built in code.
func (b Body) Uint64(key string) (uint64, bool) {
	return toUint64(b[key])
}

// Strings returns key as a slice of strings. Non-string items are skipped.
func (b Body) Strings(key string) ([]string, bool) {
	switch v := b[key].(type) {
	case []string:
		return append([]string(nil), v...), true
	case []interface{}:
		res := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				res = append(res, s)
			}
		}
		return res, true
	default:
		return nil, false
	}
}

// Uint64s returns key as a slice of non-negative integers. It fails if any
// item is not one.
func (b Body) Uint64s(key string) ([]uint64, bool) {
	switch v := b[key].(type) {
	case []uint64:
		return append([]uint64(nil), v...), true
	case []interface{}:
		res := make([]uint64, 0, len(v))
		for _, item := range v {
			u, ok := toUint64(item)
			if !ok {
				return nil, false
			}
			res = append(res, u)
		}
		return res, true
	default:
		return nil, false
	}
}

// Object returns key as a JSON object.
func (b Body) Object(key string) (map[string]interface{}, bool) {
	switch v := b[key].(type) {
	case map[string]interface{}:
		return v, true
	case Body:
		return v, true
	default:
		return nil, false
	}
}

// Keys returns the sorted keys of the object stored under key.
func (b Body) Keys(key string) ([]string, bool) {
	obj, ok := b.Object(key)
	if !ok {
		return nil, false
	}
	res := make([]string, 0, len(obj))
	for k := range obj {
		res = append(res, k)
	}
	sort.Strings(res)
	return res, true
}

// Clone returns a shallow copy of the body. Nested values are shared, which is
// safe because bodies are never mutated in place.
func (b Body) Clone() Body {
	res := make(Body, len(b))
	for k, v := range b {
		res[k] = v
	}
	return res
}

// With returns a copy of b with extra merged on top.
func (b Body) With(extra Body) Body {
	res := b.Clone()
	for k, v := range extra {
		res[k] = v
	}
	return res
}

// Without returns a copy of b without the given keys.
func (b Body) Without(keys ...string) Body {
	res := b.Clone()
	for _, k := range keys {
		delete(res, k)
	}
	return res
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return u, true
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= 1<<64 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
