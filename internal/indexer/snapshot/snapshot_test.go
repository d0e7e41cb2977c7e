package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	texts := map[string]string{
		"A":     "cat dog cat",
		"B":     "dog bird",
		"C":     "cat cat cat",
		"Empty": "",
	}
	idx, err := index.BuildFromText(context.Background(), texts, tokenizer.Whitespace, 2)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestWriteRead(t *testing.T) {
	idx := buildIndex(t)
	path := filepath.Join(t.TempDir(), "nested", "index.asix")

	meta, err := Write(path, idx.Snapshot(), "whitespace")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Terms != 3 || meta.Documents != 4 || meta.Processor != "whitespace" {
		t.Errorf("meta = %+v", meta)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	snap, readMeta, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(meta, readMeta); diff != "" {
		t.Errorf("meta Diff: (-want +got)\n%s", diff)
	}
	if diff := cmp.Diff(idx.Snapshot(), snap, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}

	restored, err := index.FromSnapshot(snap, tokenizer.Whitespace)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := idx.Query("cat", 2)
	got, err := restored.Query("cat", 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query Diff: (-want +got)\n%s", diff)
	}
}

func TestWriteReadEmptyIndex(t *testing.T) {
	idx := index.Build(nil, tokenizer.Whitespace)
	path := filepath.Join(t.TempDir(), "empty.asix")
	if _, err := Write(path, idx.Snapshot(), "whitespace"); err != nil {
		t.Fatal(err)
	}
	snap, _, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Terms) != 0 || len(snap.Documents) != 0 {
		t.Errorf("snap = %+v; want empty", snap)
	}
}

func TestReadRejects(t *testing.T) {
	idx := buildIndex(t)
	path := filepath.Join(t.TempDir(), "index.asix")
	if _, err := Write(path, idx.Snapshot(), "whitespace"); err != nil {
		t.Fatal(err)
	}
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"truncated", func(b []byte) []byte { return b[:HeaderSize] }, apperrors.ErrSnapshotCorrupt},
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, apperrors.ErrSnapshotCorrupt},
		{"version", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:8], FormatVersion+1)
			return b
		}, apperrors.ErrSnapshotVersion},
		{"body bit flip", func(b []byte) []byte { b[HeaderSize+5] ^= 0x01; return b }, apperrors.ErrSnapshotCorrupt},
		{"term count", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[8:12], 7)
			return b
		}, apperrors.ErrSnapshotCorrupt},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0) }, apperrors.ErrSnapshotCorrupt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.mutate(append([]byte(nil), good...))
			if _, _, err := Decode(data); !errors.Is(err, tc.want) {
				t.Errorf("err = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, _, err := Read(filepath.Join(t.TempDir(), "none.asix")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v; want os.ErrNotExist", err)
	}
}
