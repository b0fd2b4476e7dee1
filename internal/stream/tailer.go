package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tinoosan/vodcache/internal/jobs"
)

// Tailer serves a cache file to one client while the fetcher may still be
// appending to it. Each Tailer owns a private read cursor and never mutates
// the file; synchronization with the writer happens only through the file's
// growing length and the job's terminal state.
type Tailer struct {
	// Poll is the growth re-check interval once the cursor hits EOF.
	Poll time.Duration
}

// Stream copies path to w from offset 0. On EOF it waits for growth while the
// job is live; once the job is terminal it drains any remaining bytes and
// stops: cleanly after Complete, with the job's error after Failed. A nil job
// degenerates to a plain whole-file read. Returns the bytes written to w.
func (t Tailer) Stream(ctx context.Context, path string, job *jobs.Job, w io.Writer) (int64, error) {
	poll := t.Poll
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}

	f, err := t.open(ctx, path, job, poll)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	flusher, _ := w.(http.Flusher)
	var written int64
	final := false
	buf := make([]byte, 128<<10)
	for {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client-side failure: local to this connection only.
				return written, werr
			}
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == nil {
			continue
		}
		if rerr != io.EOF {
			return written, rerr
		}
		// At current end of file. A terminal job means the writer is gone;
		// one more pass picks up bytes appended between our last read and
		// the terminal transition, then the next EOF is truly the end.
		if job == nil || job.Terminal() {
			if final {
				if job != nil && job.Err() != nil {
					return written, fmt.Errorf("fetch failed mid-stream: %w", job.Err())
				}
				return written, nil
			}
			final = true
			continue
		}
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-job.Done():
		case <-time.After(poll):
		}
	}
}

// open waits for the cache file to appear; the job creates it shortly after
// starting. A terminal job with no file means the fetch never got that far.
func (t Tailer) open(ctx context.Context, path string, job *jobs.Job, poll time.Duration) (*os.File, error) {
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		if job == nil {
			return nil, err
		}
		if job.Terminal() {
			if jerr := job.Err(); jerr != nil {
				return nil, fmt.Errorf("fetch failed: %w", jerr)
			}
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-job.Done():
		case <-time.After(poll):
		}
	}
}
