package net

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ugorji/go/codec"
)

type fingerprintInput struct {
	Src  string
	Dest string
	Body Body
}

// Fingerprint identifies the content of an envelope. It hashes (SHA256) the
// canonical JSON encoding of source, destination and body, so two envelopes
// with the same content get the same fingerprint regardless of key order.
func Fingerprint(e *Envelope) (string, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(fingerprintInput{Src: e.Src, Dest: e.Dest, Body: e.Body}); err != nil {
		return "", err
	}

	sum := sha256.Sum256(b.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
