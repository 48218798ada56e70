package api

import (
	"bytes"
	"sync"
)

// bufferPool reuses request-body buffers across concurrent judge calls
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// getBuffer retrieves a buffer from the pool.
// Caller must call putBuffer() when done to return it to the pool.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool for reuse.
// Judge prompts embed whole conversations, so the cap is larger than a typical API body.
func putBuffer(buf *bytes.Buffer) {
	const maxBufferSize = 256 * 1024
	if buf.Cap() <= maxBufferSize {
		bufferPool.Put(buf)
	}
}
