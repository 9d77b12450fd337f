// Package internal provides internal utility functions and types used across
// the agricache packages.
package internal

import (
	"bytes"
	"encoding/json"
	"sync"
)

// bufPool recycles scratch buffers used for size estimation.
var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// EstimateSize returns the serialized size of v in bytes. The estimate is the
// JSON encoding length, which tracks payload weight rather than true heap
// footprint, so byte budgets derived from it are soft.
func EstimateSize(v any) int64 {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return 0
	}
	return int64(buf.Len())
}
