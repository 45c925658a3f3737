package bandwidth

import (
	"context"
	"io"
	"net/http"
)

// DefaultChunkSize is the unit of transfer: tokens are acquired and bytes
// written one chunk at a time, so a transfer never gets more than one chunk
// ahead of the bucket.
const DefaultChunkSize = 32 * 1024

// SourceError marks a failure reading from the byte source (storage side).
type SourceError struct{ Err error }

func (e *SourceError) Error() string { return "bandwidth: source read: " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// SinkError marks a failure writing to the destination, typically the client
// hanging up mid-transfer.
type SinkError struct{ Err error }

func (e *SinkError) Error() string { return "bandwidth: sink write: " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

// Pump copies src to dst in chunks, acquiring exactly the bytes read from the
// shared bucket before each write. Within one call bytes are delivered
// strictly in source order. Tokens are acquired before the write so a slow or
// dead destination stops the token draw rather than the other way round: a
// write that blocks (backpressure) simply suspends this goroutine, and a
// cancelled ctx unblocks a pending Acquire.
//
// The returned error is nil on source exhaustion, a *SourceError or
// *SinkError on I/O failure, or ctx.Err() when cancelled while waiting for
// tokens. Pump does not close src.
func Pump(ctx context.Context, dst io.Writer, src io.Reader, b *Bucket) (int64, error) {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, DefaultChunkSize)

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := b.Acquire(ctx, n); err != nil {
				return written, err
			}
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, &SinkError{Err: werr}
			}
			if w < n {
				return written, &SinkError{Err: io.ErrShortWrite}
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, &SourceError{Err: rerr}
		}
	}
}
