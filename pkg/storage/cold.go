package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	coldExtension = ".cold"

	// coldEnvelopeVersion is bumped when the envelope layout changes
	coldEnvelopeVersion = 1
)

// coldEnvelope is the on-disk record of a cold blob
type coldEnvelope struct {
	Version     int    `cbor:"1,keyasint"`
	ModuleID    string `cbor:"2,keyasint"`
	SizeTokens  int    `cbor:"3,keyasint"`
	Compression string `cbor:"4,keyasint"`
	RawSize     int    `cbor:"5,keyasint"`
	Checksum    []byte `cbor:"6,keyasint"`
	StoredAt    int64  `cbor:"7,keyasint"`
	Payload     []byte `cbor:"8,keyasint"`
}

// ColdTier archives module content as one file per module, zstd
// compressed at the best-compression level. Retrieval verifies the
// BLAKE3 checksum of the reconstructed payload.
type ColdTier struct {
	dir    string
	logger zerolog.Logger
}

// NewColdTier creates a cold tier rooted at dir
func NewColdTier(dir string, logger zerolog.Logger) (*ColdTier, error) {
	if dir == "" {
		return nil, errors.New("cold directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cold directory: %w", err)
	}
	return &ColdTier{
		dir:    dir,
		logger: logger.With().Str("component", "cold-tier").Logger(),
	}, nil
}

func (c *ColdTier) Name() string { return NameCold }

func (c *ColdTier) path(id string) string {
	return filepath.Join(c.dir, id+coldExtension)
}

func (c *ColdTier) Store(id string, blob Blob) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	payload, algorithm, err := compress(blob.Data, CompressionZstd)
	if err != nil {
		return false, fmt.Errorf("failed to compress %s: %w", id, err)
	}

	data, err := marshal(coldEnvelope{
		Version:     coldEnvelopeVersion,
		ModuleID:    id,
		SizeTokens:  blob.SizeTokens,
		Compression: string(algorithm),
		RawSize:     len(blob.Data),
		Checksum:    checksum(blob.Data),
		StoredAt:    time.Now().Unix(),
		Payload:     payload,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode envelope for %s: %w", id, err)
	}

	path := c.path(id)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	c.logger.Debug().
		Str("module", id).
		Int("raw_bytes", len(blob.Data)).
		Int("stored_bytes", len(data)).
		Str("compression", string(algorithm)).
		Msg("Archived blob")
	return true, nil
}

func (c *ColdTier) Retrieve(id string) (Blob, bool, error) {
	if err := validateID(id); err != nil {
		return Blob{}, false, err
	}

	data, err := os.ReadFile(c.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Blob{}, false, nil
	}
	if err != nil {
		return Blob{}, false, fmt.Errorf("failed to read cold file: %w", err)
	}

	var envelope coldEnvelope
	if err := unmarshal(data, &envelope); err != nil {
		return Blob{}, false, fmt.Errorf("%w: failed to decode envelope for %s: %v", ErrCorrupted, id, err)
	}
	if envelope.Version != coldEnvelopeVersion {
		return Blob{}, false, fmt.Errorf("%w: unsupported envelope version %d for %s", ErrCorrupted, envelope.Version, id)
	}
	if envelope.ModuleID != id {
		return Blob{}, false, fmt.Errorf("%w: envelope for %s holds %s", ErrCorrupted, id, envelope.ModuleID)
	}

	payload, err := decompress(envelope.Payload, Compression(envelope.Compression), envelope.RawSize)
	if err != nil {
		return Blob{}, false, fmt.Errorf("%s: %w", id, err)
	}
	if !bytes.Equal(checksum(payload), envelope.Checksum) {
		return Blob{}, false, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupted, id)
	}
	if payload == nil {
		payload = []byte{}
	}

	return Blob{
		Data:       payload,
		SizeTokens: envelope.SizeTokens,
		Compressed: Compression(envelope.Compression) != CompressionNone,
	}, true, nil
}

func (c *ColdTier) Remove(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	err := os.Remove(c.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove cold file: %w", err)
	}
	return true, nil
}

func (c *ColdTier) Has(id string) (bool, error) {
	if validateID(id) != nil {
		return false, nil
	}
	_, err := os.Stat(c.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat cold blob %s: %w", id, err)
	}
	return true, nil
}

func (c *ColdTier) IDs() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cold directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, coldExtension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, coldExtension))
	}
	sort.Strings(ids)
	return ids, nil
}
