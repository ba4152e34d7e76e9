package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ReplaySource streams packets from a JSONL dump, one Packet per line.
// Files ending in .zst are zstd-compressed.
type ReplaySource struct {
	path    string
	logger  *slog.Logger
	ch      chan Packet
	restart chan struct{}
}

func NewReplaySource(path string, logger *slog.Logger) *ReplaySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplaySource{
		path:    path,
		logger:  logger,
		ch:      make(chan Packet, 256),
		restart: make(chan struct{}, 1),
	}
}

func (r *ReplaySource) Packets() <-chan Packet {
	return r.ch
}

// RequestRestart makes Run start over from the beginning of the dump.
func (r *ReplaySource) RequestRestart() {
	select {
	case r.restart <- struct{}{}:
	default:
	}
}

// Run streams the dump until it ends or ctx is done, then closes the packet
// channel. A restart request rewinds to the first packet.
func (r *ReplaySource) Run(ctx context.Context) error {
	defer close(r.ch)
	for {
		restarted, err := r.stream(ctx)
		if err != nil {
			return err
		}
		if !restarted {
			return nil
		}
		r.logger.Info("Restarting replay", "path", r.path)
	}
}

func (r *ReplaySource) stream(ctx context.Context) (bool, error) {
	rc, err := openDump(r.path)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p Packet
		if err := json.Unmarshal(raw, &p); err != nil {
			r.logger.Warn("Skipping malformed replay line", "line", line, "error", err)
			continue
		}
		select {
		case r.ch <- p:
		case <-r.restart:
			return true, nil
		case <-ctx.Done():
			return false, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("reading %s: %w", r.path, err)
	}
	select {
	case <-r.restart:
		return true, nil
	default:
		return false, nil
	}
}

type zstdReadCloser struct {
	*zstd.Decoder
	f *os.File
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

func openDump(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	return zstdReadCloser{Decoder: dec, f: f}, nil
}

// DumpWriter records packets in the format ReplaySource reads.
type DumpWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewDumpWriter creates path, compressing when it ends in .zst.
func NewDumpWriter(path string) (*DumpWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	d := &DumpWriter{f: f}
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		d.enc = enc
		d.w = bufio.NewWriterSize(enc, 128*1024)
	} else {
		d.w = bufio.NewWriterSize(f, 128*1024)
	}
	return d, nil
}

func (d *DumpWriter) Write(p Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := d.w.Write(b); err != nil {
		return err
	}
	return d.w.WriteByte('\n')
}

func (d *DumpWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.w != nil {
		err = d.w.Flush()
	}
	if d.enc != nil {
		if cerr := d.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}
