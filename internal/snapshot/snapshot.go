// Package snapshot persists run checkpoints so a later invocation can
// continue accumulating counts.
//
// A snapshot file is a plain-text JSON header line followed by the
// gzip-compressed JSON checkpoint. The header carries a sha256 of the
// compressed payload and enough metadata to list a snapshot without
// decompressing it.
package snapshot

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/lhvsim/internal/engine"
)

// FormatVersion is the current snapshot format.
const FormatVersion = 1

// MaxDecompressedSize bounds the decompressed payload (16MB).
const MaxDecompressedSize = 16 * 1024 * 1024

// ErrChecksum is returned when the payload does not match the header.
var ErrChecksum = errors.New("snapshot checksum mismatch")

// Header is the first line of a snapshot file.
type Header struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Checksum    string    `json:"checksum"`
	Model       string    `json:"model"`
	Inequality  string    `json:"inequality"`
	TotalTrials int       `json:"total_trials"`
	Compressed  bool      `json:"compressed"`
}

// Save writes cp to path, replacing any existing file.
func Save(path string, cp engine.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header := Header{
		Version:     FormatVersion,
		CreatedAt:   time.Now().UTC(),
		Checksum:    checksum(compressed.Bytes()),
		Model:       cp.Model,
		Inequality:  cp.Inequality,
		TotalTrials: cp.Counts.TotalTrials,
		Compressed:  true,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	// Write to a sibling temp file so an interrupted save never truncates
	// the previous snapshot.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(headerBytes, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads path, verifies its checksum and returns the checkpoint.
func Load(path string) (engine.Checkpoint, *Header, error) {
	header, compressed, err := read(path)
	if err != nil {
		return engine.Checkpoint{}, nil, err
	}
	if err := verify(header, compressed); err != nil {
		return engine.Checkpoint{}, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return engine.Checkpoint{}, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return engine.Checkpoint{}, nil, fmt.Errorf("decompressing checkpoint: %w", err)
	}
	if len(decompressed) > MaxDecompressedSize {
		return engine.Checkpoint{}, nil, fmt.Errorf("checkpoint exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var cp engine.Checkpoint
	if err := json.Unmarshal(decompressed, &cp); err != nil {
		return engine.Checkpoint{}, nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	return cp, header, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// Verify checks the payload checksum without decompressing.
func Verify(path string) error {
	header, compressed, err := read(path)
	if err != nil {
		return err
	}
	return verify(header, compressed)
}

func read(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading payload: %w", err)
	}
	return header, compressed, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	return &header, nil
}

func verify(header *Header, compressed []byte) error {
	if actual := checksum(compressed); actual != header.Checksum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksum, header.Checksum, actual)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
