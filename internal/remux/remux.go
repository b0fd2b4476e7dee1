package remux

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Remuxer runs ffmpeg as a managed external filter. Processes are started
// with the request context so a client disconnect kills them; they never
// outlive the owning connection.
type Remuxer struct {
	// Bin is the ffmpeg binary, "ffmpeg" when empty.
	Bin string
	Log *slog.Logger
}

func (r *Remuxer) bin() string {
	if r.Bin == "" {
		return "ffmpeg"
	}
	return r.Bin
}

func (r *Remuxer) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

// Fragmented repackages src into fragmented MP4 on w without transcoding.
// The fragmented layout is streamable from byte 0, unlike a plain MP4 whose
// moov atom lands at the end.
func (r *Remuxer) Fragmented(ctx context.Context, src string, w io.Writer) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}
	r.logger().Debug("starting ffmpeg", "mode", "fmp4", "src", src)
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	cmd.Stdout = w
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg fragment: %w", err)
	}
	return nil
}

// SegmentHLS repackages src into an HLS playlist plus segments under dir.
func (r *Remuxer) SegmentHLS(ctx context.Context, src, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(dir, "seg%05d.ts"),
		filepath.Join(dir, "index.m3u8"),
	}
	r.logger().Debug("starting ffmpeg", "mode", "hls", "src", src, "dir", dir)
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg hls: %w", err)
	}
	return nil
}
