package tokenizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestJapaneseProcess(t *testing.T) {
	cases := []struct {
		reading Reading
		text    string
		want    []string
	}{
		{Surface, "今日は天気が良い", []string{"今日", "は", "天気", "が", "良い"}},
		{Kana, "今日は天気が良い", []string{"キョウ", "ハ", "テンキ", "ガ", "ヨイ"}},
		{Romaji, "今日は天気が良い", []string{"kyo", "ha", "tenki", "ga", "yoi"}},
		{Surface, "", []string{}},
	}

	for _, tt := range cases {
		j, err := NewJapanese(tt.reading)
		if err != nil {
			t.Fatalf("initializing kagome: %v", err)
		}
		if diff := cmp.Diff(tt.want, j.Process(tt.text), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("reading %d, text %q Diff: (-want +got)\n%s", tt.reading, tt.text, diff)
		}
	}
}
