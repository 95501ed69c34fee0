package storage

import (
	"fmt"
)

// EncodeBundle packs a module's content files into one blob: a CBOR map
// from relative path to file bytes. Map keys are sorted by the
// deterministic encoding, so equal inputs give equal bytes.
func EncodeBundle(files map[string][]byte) ([]byte, error) {
	if files == nil {
		files = map[string][]byte{}
	}
	data, err := marshal(files)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle unpacks a blob produced by EncodeBundle
func DecodeBundle(data []byte) (map[string][]byte, error) {
	var files map[string][]byte
	if err := unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bundle: %v", ErrCorrupted, err)
	}
	if files == nil {
		files = map[string][]byte{}
	}
	return files, nil
}
