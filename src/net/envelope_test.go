package net

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/nodekit/src/common"
)

func TestParseEnvelope(t *testing.T) {
	line := []byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":18446744073709551615,"echo":"hi"}}`)

	env, err := ParseEnvelope(line)
	if err != nil {
		t.Fatal(err)
	}

	if env.Src != "c1" || env.Dest != "n1" {
		t.Fatalf("routing should be c1->n1, not %s->%s", env.Src, env.Dest)
	}

	if env.Body.Type() != "echo" {
		t.Fatalf("type should be echo, not %q", env.Body.Type())
	}

	msgID, ok := env.Body.MsgID()
	if !ok || msgID != 18446744073709551615 {
		t.Fatalf("msg_id should survive decoding, got %d, %v", msgID, ok)
	}

	if echo, _ := env.Body.String("echo"); echo != "hi" {
		t.Fatalf("echo should be hi, not %q", echo)
	}
}

func TestParseEnvelopeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":     `this is not json`,
		"no body":      `{"src":"c1","dest":"n1"}`,
		"no type":      `{"src":"c1","dest":"n1","body":{"msg_id":1}}`,
		"empty type":   `{"src":"c1","dest":"n1","body":{"type":""}}`,
		"numeric type": `{"src":"c1","dest":"n1","body":{"type":3}}`,
		"body array":   `{"src":"c1","dest":"n1","body":[1,2]}`,
	}

	for name, line := range cases {
		_, err := ParseEnvelope([]byte(line))
		if !common.IsNodeErr(err, common.MalformedEnvelope) {
			t.Fatalf("%s: expected MalformedEnvelope, got %v", name, err)
		}
	}
}

func TestBuildReply(t *testing.T) {
	req, err := ParseEnvelope([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":7,"echo":"x"}}`))
	if err != nil {
		t.Fatal(err)
	}

	reply, err := BuildReply("n1", req, "echo_ok", Body{"echo": "x"})
	if err != nil {
		t.Fatal(err)
	}

	if reply.Src != "n1" || reply.Dest != "c1" {
		t.Fatalf("reply should go n1->c1, not %s->%s", reply.Src, reply.Dest)
	}

	expected := Body{"type": "echo_ok", "in_reply_to": uint64(7), "echo": "x"}
	if !reflect.DeepEqual(reply.Body, expected) {
		t.Fatalf("reply body should be %v, not %v", expected, reply.Body)
	}

	// the request is left untouched
	if _, ok := req.Body.InReplyTo(); ok {
		t.Fatalf("request body was mutated: %v", req.Body)
	}
}

func TestBuildReplyMissingMsgID(t *testing.T) {
	req := &Envelope{Src: "c1", Dest: "n1", Body: Body{"type": "echo"}}

	reply, err := BuildReply("n1", req, "echo_ok", nil)
	if !common.IsNodeErr(err, common.MissingCorrelationField) {
		t.Fatalf("expected MissingCorrelationField, got %v", err)
	}
	if reply != nil {
		t.Fatalf("no reply should be built, got %v", reply)
	}
}

func TestBodyAccessors(t *testing.T) {
	b := Body{
		"n":        json.Number("42"),
		"neg":      json.Number("-1"),
		"f":        float64(3),
		"frac":     1.5,
		"ids":      []interface{}{"n1", 2, "n2"},
		"topology": map[string]interface{}{"n2": []interface{}{}, "n1": []interface{}{}},
	}

	if v, ok := b.Uint64("n"); !ok || v != 42 {
		t.Fatalf("n should be 42, got %d, %v", v, ok)
	}
	if _, ok := b.Uint64("neg"); ok {
		t.Fatalf("negative numbers are not valid uint64")
	}
	if v, ok := b.Uint64("f"); !ok || v != 3 {
		t.Fatalf("f should be 3, got %d, %v", v, ok)
	}
	if _, ok := b.Uint64("frac"); ok {
		t.Fatalf("fractions are not valid uint64")
	}
	if _, ok := b.Uint64("missing"); ok {
		t.Fatalf("missing keys are not valid uint64")
	}

	ids, ok := b.Strings("ids")
	if !ok || !reflect.DeepEqual(ids, []string{"n1", "n2"}) {
		t.Fatalf("ids should be [n1 n2], not %v", ids)
	}

	if _, ok := b.Uint64s("ids"); ok {
		t.Fatalf("ids holds strings, not integers")
	}

	nums, ok := Body{"messages": []interface{}{json.Number("1"), json.Number("3")}}.Uint64s("messages")
	if !ok || !reflect.DeepEqual(nums, []uint64{1, 3}) {
		t.Fatalf("messages should be [1 3], not %v", nums)
	}

	keys, ok := b.Keys("topology")
	if !ok || !reflect.DeepEqual(keys, []string{"n1", "n2"}) {
		t.Fatalf("keys should be [n1 n2], not %v", keys)
	}

	if _, ok := b.Keys("ids"); ok {
		t.Fatalf("an array is not an object")
	}

	c := b.With(Body{"extra": true}).Without("n")
	if _, ok := c["n"]; ok {
		t.Fatalf("Without should remove n")
	}
	if _, ok := b["extra"]; ok {
		t.Fatalf("With should not modify the original body")
	}
}

func TestFingerprint(t *testing.T) {
	a, err := ParseEnvelope([]byte(`{"src":"c1","dest":"n1","body":{"type":"add","delta":3,"msg_id":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseEnvelope([]byte(`{"dest":"n1","body":{"msg_id":1,"delta":3,"type":"add"},"src":"c1"}`))
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseEnvelope([]byte(`{"src":"c2","dest":"n1","body":{"type":"add","delta":3,"msg_id":1}}`))
	if err != nil {
		t.Fatal(err)
	}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := Fingerprint(b)
	fc, _ := Fingerprint(c)

	if fa != fb {
		t.Fatalf("key order should not change the fingerprint: %s != %s", fa, fb)
	}
	if fa == fc {
		t.Fatalf("different sources should have different fingerprints")
	}
}
