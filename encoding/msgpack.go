// Package encoding provides centralized serialization for mxbridge host
// payloads. ALL msgpack operations MUST go through this package to ensure
// consistent behavior.
//
// Thread Safety: every exported function is safe for concurrent use.
//
// Type Preservation: When decoding into interface{}, msgpack strings decode
// as Go strings (not []byte), so variable names and commands survive a
// round trip through untyped maps.
package encoding

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

type encoderPoolEntry struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		buf := &bytes.Buffer{}
		return &encoderPoolEntry{buf: buf, enc: msgpack.NewEncoder(buf)}
	},
}

// Marshal encodes a value to msgpack format.
func Marshal(v interface{}) ([]byte, error) {
	entry := encoderPool.Get().(*encoderPoolEntry)
	defer encoderPool.Put(entry)
	entry.buf.Reset()

	if err := entry.enc.Encode(v); err != nil {
		return nil, err
	}

	// The buffer goes back to the pool; hand out a copy.
	out := make([]byte, entry.buf.Len())
	copy(out, entry.buf.Bytes())
	return out, nil
}

// Unmarshal decodes msgpack data using loose interface decoding.
// When decoding into interface{}, strings are preserved as Go strings (not []byte).
func Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
