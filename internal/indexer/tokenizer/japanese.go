package tokenizer

import (
	"fmt"
	"strings"

	ipaneologd "github.com/ikawaha/kagome-dict-ipa-neologd"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/kotaroooo0/gojaconv/jaconv"
)

// Reading selects which form of a Japanese token becomes the term.
type Reading int

const (
	Surface Reading = iota
	Kana
	Romaji
)

func ParseReading(s string) (Reading, error) {
	switch s {
	case "", "surface":
		return Surface, nil
	case "kana":
		return Kana, nil
	case "romaji":
		return Romaji, nil
	default:
		return Surface, fmt.Errorf("unknown reading %q", s)
	}
}

// Japanese segments text with kagome's morphological analyzer. Latin
// surfaces are lowercased so mixed-script listings still match English
// queries.
type Japanese struct {
	kagome  *kagome.Tokenizer
	reading Reading
}

func NewJapanese(reading Reading) (*Japanese, error) {
	t, err := kagome.New(ipaneologd.Dict(), kagome.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("initializing kagome: %w", err)
	}
	return &Japanese{kagome: t, reading: reading}, nil
}

func (j *Japanese) Process(text string) []string {
	tokens := j.kagome.Analyze(text, kagome.Search)
	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		features := token.Features()
		// 空白 marks whitespace tokens.
		if len(features) > 1 && features[1] == "空白" {
			continue
		}
		surface := strings.TrimSpace(token.Surface)
		if surface == "" {
			continue
		}
		kana := surface
		if len(features) >= 8 && features[7] != "*" {
			kana = features[7]
		}
		var term string
		switch j.reading {
		case Kana:
			term = kana
		case Romaji:
			term = toRomaji(kana)
		default:
			term = surface
		}
		terms = append(terms, strings.ToLower(term))
	}
	return terms
}

func toRomaji(kana string) string {
	return jaconv.ToHebon(jaconv.KatakanaToHiragana(kana))
}
