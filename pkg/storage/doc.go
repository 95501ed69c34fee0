/*
Package storage implements the three-tier content hierarchy.

  - HotTier keeps uncompressed blobs in memory and refuses a Store that
    would exceed its token capacity.
  - WarmTier keeps blobs in a SQLite table, LZ4-compressed when that
    shrinks them.
  - ColdTier keeps one <id>.cold file per module: a deterministic CBOR
    envelope around a zstd payload with a BLAKE3 checksum.

TieredStore.Move is the only way content changes tier. It stores into
the destination before removing from the source, so a refused or failed
store leaves the source untouched and content is never held by two tiers
once a move returns.
*/
package storage
