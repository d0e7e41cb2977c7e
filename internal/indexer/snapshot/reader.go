package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/weight"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

// Read loads and validates the snapshot at path. Structural damage is
// reported as apperrors.ErrSnapshotCorrupt and an unknown format version as
// apperrors.ErrSnapshotVersion.
func Read(path string) (index.Snapshot, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return index.Snapshot{}, Meta{}, fmt.Errorf("opening snapshot file: %w", err)
	}
	return Decode(data)
}

// Decode parses a snapshot held in memory.
func Decode(data []byte) (index.Snapshot, Meta, error) {
	if len(data) < HeaderSize+FooterSize {
		return index.Snapshot{}, Meta{}, fmt.Errorf("snapshot is %d bytes: %w", len(data), apperrors.ErrSnapshotCorrupt)
	}
	headerBytes := data[:HeaderSize]
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return index.Snapshot{}, Meta{}, fmt.Errorf("bad magic bytes %x: %w", magic, apperrors.ErrSnapshotCorrupt)
	}
	header := Header{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		BodyOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		BodySize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
	}
	if header.Version != FormatVersion {
		return index.Snapshot{}, Meta{}, fmt.Errorf("version %d: %w", header.Version, apperrors.ErrSnapshotVersion)
	}
	end := header.BodyOffset + header.BodySize
	if header.BodyOffset != int64(HeaderSize) || header.BodySize < 0 || end+int64(FooterSize) != int64(len(data)) {
		return index.Snapshot{}, Meta{}, fmt.Errorf("body [%d,%d) does not fit %d bytes: %w",
			header.BodyOffset, end, len(data), apperrors.ErrSnapshotCorrupt)
	}
	bodyData := data[header.BodyOffset:end]

	footer := data[end:]
	if binary.LittleEndian.Uint32(footer[24:28]) != MagicBytes {
		return index.Snapshot{}, Meta{}, fmt.Errorf("bad footer: %w", apperrors.ErrSnapshotCorrupt)
	}
	if sum := crc32.ChecksumIEEE(bodyData); sum != binary.LittleEndian.Uint32(footer[0:4]) {
		return index.Snapshot{}, Meta{}, fmt.Errorf("checksum mismatch: %w", apperrors.ErrSnapshotCorrupt)
	}

	var b body
	dec := json.NewDecoder(bytes.NewReader(bodyData))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return index.Snapshot{}, Meta{}, fmt.Errorf("parsing body: %v: %w", err, apperrors.ErrSnapshotCorrupt)
	}
	if len(b.Vocabulary) != int(header.TermCount) || len(b.IDF) != len(b.Vocabulary) {
		return index.Snapshot{}, Meta{}, fmt.Errorf("header says %d terms, body has %d terms and %d idf weights: %w",
			header.TermCount, len(b.Vocabulary), len(b.IDF), apperrors.ErrSnapshotCorrupt)
	}
	if len(b.Documents) != int(header.DocCount) {
		return index.Snapshot{}, Meta{}, fmt.Errorf("header says %d documents, body has %d: %w",
			header.DocCount, len(b.Documents), apperrors.ErrSnapshotCorrupt)
	}

	snap := index.Snapshot{
		Terms:     b.Vocabulary,
		IDF:       b.IDF,
		Documents: make([]weight.DocVector, len(b.Documents)),
	}
	for i, d := range b.Documents {
		values := make(weight.Vector, len(b.Vocabulary))
		prev := -1
		for _, e := range d.Entries {
			if e.Index <= prev || e.Index >= len(values) {
				return index.Snapshot{}, Meta{}, fmt.Errorf("document %q: entry index %d out of order or range: %w",
					d.Name, e.Index, apperrors.ErrSnapshotCorrupt)
			}
			values[e.Index] = e.Value
			prev = e.Index
		}
		snap.Documents[i] = weight.DocVector{Name: d.Name, Values: values, Norm: d.Norm}
	}
	return snap, Meta{
		Version:   header.Version,
		Terms:     len(b.Vocabulary),
		Documents: len(b.Documents),
		CreatedAt: time.Unix(header.CreatedAt, 0),
		Processor: b.Processor,
	}, nil
}
