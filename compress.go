package wral

import (
	"github.com/klauspost/compress/s2"
)

// PayloadCodec optionally compresses a record's payload before it is
// framed by encodeRecord, and decompresses it after nextRecordOrDone. The
// codec operates strictly above the wire format: payload_len in the
// framed record is always the length of the *stored* (possibly
// compressed) bytes, never the logical payload length, so the codec is
// transparent to anything reading raw framing without decoding through a
// Wal[S] (e.g. an external repair tool).
type PayloadCodec interface {
	Compress(payload []byte) ([]byte, error)
	Decompress(stored []byte) ([]byte, error)
}

// S2Codec compresses record payloads with klauspost/compress/s2, a
// Snappy-compatible codec tuned for throughput. It is a reasonable default
// for journals whose payloads are text- or JSON-like; binary/already-
// compressed payloads should leave Config.Compression nil.
type S2Codec struct{}

func (S2Codec) Compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	return s2.Encode(nil, payload), nil
}

func (S2Codec) Decompress(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return stored, nil
	}
	return s2.Decode(nil, stored)
}

var _ PayloadCodec = S2Codec{}
