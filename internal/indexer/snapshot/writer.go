// Package snapshot persists a built index as a single .asix file: a fixed
// binary header, a JSON body holding the vocabulary, IDF table and sparse
// document vectors, and a footer carrying the body checksum.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/index"
)

// MagicBytes spells "ASIX" when read little-endian.
const (
	MagicBytes    uint32 = 0x58495341
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// Header is the 64-byte header written at the start of every snapshot.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	BodyOffset int64
	BodySize   int64
}

// Meta describes a snapshot file without its payload.
type Meta struct {
	Version   uint32
	Terms     int
	Documents int
	CreatedAt time.Time
	// Processor names the text processor the index was built with.
	Processor string
}

type body struct {
	Processor  string     `json:"processor"`
	Vocabulary []string   `json:"vocabulary"`
	IDF        []float64  `json:"idf"`
	Documents  []document `json:"documents"`
}

type document struct {
	Name    string  `json:"name"`
	Norm    float64 `json:"norm"`
	Entries []entry `json:"entries"`
}

// entry is one non-zero vector component. Components not listed are zero.
type entry struct {
	Index int     `json:"i"`
	Value float64 `json:"v"`
}

// Write atomically stores snap at path. It writes to path+".tmp" first and
// renames on success.
func Write(path string, snap index.Snapshot, processor string) (Meta, error) {
	b := body{
		Processor:  processor,
		Vocabulary: snap.Terms,
		IDF:        snap.IDF,
		Documents:  make([]document, len(snap.Documents)),
	}
	if b.Vocabulary == nil {
		b.Vocabulary = []string{}
	}
	if b.IDF == nil {
		b.IDF = []float64{}
	}
	for i, d := range snap.Documents {
		entries := make([]entry, 0)
		for j, v := range d.Values {
			if v != 0 {
				entries = append(entries, entry{Index: j, Value: v})
			}
		}
		b.Documents[i] = document{Name: d.Name, Norm: d.Norm, Entries: entries}
	}
	bodyData, err := json.Marshal(b)
	if err != nil {
		return Meta{}, fmt.Errorf("marshaling snapshot body: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Meta{}, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Meta{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	createdAt := time.Now()
	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(snap.Terms)),
		DocCount:   uint32(len(snap.Documents)),
		CreatedAt:  createdAt.Unix(),
		BodyOffset: int64(HeaderSize),
		BodySize:   int64(len(bodyData)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.TermCount)
	binary.LittleEndian.PutUint32(headerBytes[12:16], header.DocCount)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(header.BodyOffset))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(header.BodySize))
	if _, err := f.Write(headerBytes); err != nil {
		return Meta{}, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(bodyData); err != nil {
		return Meta{}, fmt.Errorf("writing body: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(bodyData))
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.BodyOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.BodySize))
	binary.LittleEndian.PutUint32(footer[24:28], MagicBytes)
	if _, err := f.Write(footer); err != nil {
		return Meta{}, fmt.Errorf("writing footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Meta{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return Meta{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return Meta{
		Version:   FormatVersion,
		Terms:     len(snap.Terms),
		Documents: len(snap.Documents),
		CreatedAt: time.Unix(header.CreatedAt, 0),
		Processor: processor,
	}, nil
}
