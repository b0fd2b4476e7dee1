package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/tinoosan/vodcache/internal/jobs"
	"github.com/tinoosan/vodcache/internal/metrics"
)

// TransferError reports a failed transfer: a non-success upstream status or a
// transport error mid-stream. The partial file is left in place so a retried
// Fetch resumes from its current size.
type TransferError struct {
	Status int // 0 when the failure was not an HTTP status
	Err    error
}

func (e *TransferError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transfer failed: http %d", e.Status)
	}
	return "transfer failed: " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// progressEvery is how many bytes pass between progress reports.
const progressEvery = 8 << 20

// Fetcher streams a resolved source URL into a cache file, resuming from the
// file's current size. The cache file for an asset has exactly one writer at
// a time (enforced by the job registry).
type Fetcher struct {
	Client   *http.Client
	Reporter jobs.Reporter
}

// Fetch downloads url into path, appending from the current on-disk offset.
// Returns the total number of bytes now on disk for this attempt.
func (f *Fetcher) Fetch(ctx context.Context, assetID, url, path string) (int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	rep := f.Reporter
	if rep == nil {
		rep = jobs.NopReporter{}
	}

	var offset int64
	if fi, err := os.Stat(path); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return offset, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	resp, err := client.Do(req)
	if err != nil {
		return offset, &TransferError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return offset, &TransferError{Status: resp.StatusCode}
	}

	total := int64(-1)
	if resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if offset > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	out, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return offset, err
	}
	defer func() { _ = out.Close() }()

	written := offset
	lastReport := offset
	buf := make([]byte, 256<<10)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			metrics.BytesFetched.Add(float64(n))
			if written-lastReport >= progressEvery {
				lastReport = written
				rep.Report(jobs.Event{
					AssetID:  assetID,
					Type:     jobs.EventProgress,
					Progress: &jobs.Progress{Bytes: written, Total: total},
				})
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, &TransferError{Err: rerr}
		}
	}
}
