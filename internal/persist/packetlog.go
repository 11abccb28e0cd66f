package persist

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// PacketLog is an optional rolling on-disk log of packet summaries,
// mirroring the original firmware's PACKET_LOG_FILE/dumpLogFile/
// eraseLogFile behavior (SPEC_FULL.md's "Supplemented features": "disabled
// by default (matches 'a few hundred KB of RAM')").
//
// Lines are appended as plain text; once the file exceeds maxBytes the log
// is erased and restarted, so disk usage stays bounded without needing a
// true ring-buffer format.
type PacketLog struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	written  int64
}

// OpenPacketLog opens (creating if needed) a packet log at path, capped at
// maxBytes before it is erased and restarted.
func OpenPacketLog(path string, maxBytes int64) (*PacketLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open packet log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat packet log %s: %w", path, err)
	}
	return &PacketLog{path: path, maxBytes: maxBytes, file: f, written: info.Size()}, nil
}

// Append writes one summary line, erasing and restarting the file first if
// it would exceed maxBytes.
func (p *PacketLog) Append(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.written+int64(len(line))+1 > p.maxBytes {
		if err := p.eraseLocked(); err != nil {
			return err
		}
	}

	w := bufio.NewWriter(p.file)
	if _, err := w.WriteString(line); err != nil {
		return fmt.Errorf("write packet log line: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write packet log newline: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush packet log: %w", err)
	}
	p.written += int64(len(line)) + 1
	return nil
}

// Erase truncates the log to zero bytes (original's eraseLogFile).
func (p *PacketLog) Erase() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eraseLocked()
}

func (p *PacketLog) eraseLocked() error {
	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate packet log %s: %w", p.path, err)
	}
	if _, err := p.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek packet log %s: %w", p.path, err)
	}
	p.written = 0
	return nil
}

// Close closes the underlying file.
func (p *PacketLog) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}
