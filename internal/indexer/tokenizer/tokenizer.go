// Package tokenizer turns raw listing text into the ordered term sequence the
// index is built from. The same Processor must be used for documents at build
// time and for query text at query time.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
)

// Processor converts text into terms. Implementations must be deterministic
// and accept any string.
type Processor interface {
	Process(text string) []string
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(text string) []string

func (f ProcessorFunc) Process(text string) []string { return f(text) }

// Whitespace splits on whitespace and does nothing else.
var Whitespace Processor = ProcessorFunc(strings.Fields)

// Filter rewrites a term sequence. Filters may drop terms but never reorder.
type Filter func(terms []string) []string

// Options selects the filter stages of an Analyzer.
type Options struct {
	Lowercase bool
	MinLength int
	Stopwords bool
	Stem      bool
	// StopwordList replaces the built-in English list when non-nil.
	StopwordList []string
}

// Analyzer splits text on non letter/digit runes and runs the configured
// filters in order: lowercase, minimum length, stopwords, stem.
type Analyzer struct {
	filters []Filter
}

func NewAnalyzer(opts Options) *Analyzer {
	a := &Analyzer{}
	if opts.Lowercase {
		a.filters = append(a.filters, LowercaseFilter)
	}
	if opts.MinLength > 1 {
		a.filters = append(a.filters, MinLengthFilter(opts.MinLength))
	}
	if opts.Stopwords {
		list := opts.StopwordList
		if list == nil {
			list = DefaultStopwords
		}
		a.filters = append(a.filters, StopwordFilter(list))
	}
	if opts.Stem {
		a.filters = append(a.filters, StemFilter)
	}
	return a
}

func (a *Analyzer) Process(text string) []string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range a.filters {
		terms = f(terms)
	}
	return terms
}

func LowercaseFilter(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}

// MinLengthFilter drops terms with fewer than n runes.
func MinLengthFilter(n int) Filter {
	return func(terms []string) []string {
		out := make([]string, 0, len(terms))
		for _, t := range terms {
			if len([]rune(t)) >= n {
				out = append(out, t)
			}
		}
		return out
	}
}

func StopwordFilter(words []string) Filter {
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[w] = struct{}{}
	}
	return func(terms []string) []string {
		out := make([]string, 0, len(terms))
		for _, t := range terms {
			if _, ok := stop[t]; !ok {
				out = append(out, t)
			}
		}
		return out
	}
}

// StemFilter applies the Snowball English stemmer. Terms that stem to the
// empty string are dropped.
func StemFilter(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if s := english.Stem(t, false); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DefaultStopwords is a common English stopword list.
var DefaultStopwords = []string{
	"a", "an", "the", "and", "or", "but",
	"to", "in", "of", "on", "for", "with", "as", "at", "by", "from",
	"is", "are", "was", "were", "be", "been", "being",
	"this", "that", "these", "those", "it", "its", "itself",
	"i", "me", "my", "we", "our", "you", "your", "yours",
	"he", "him", "his", "she", "her", "they", "them", "their",
	"do", "does", "did", "have", "has", "had",
	"not", "no", "nor", "only", "very", "too",
	"can", "could", "should", "would", "may", "might", "must", "will",
	"if", "then", "else", "than", "so", "when", "where", "which", "what", "who",
	"about", "into", "out", "up", "down", "over", "here", "there",
}

// New builds the Processor named by cfg.
func New(cfg config.TokenizerConfig) (Processor, error) {
	switch cfg.Name {
	case "", "standard":
		return NewAnalyzer(Options{
			Lowercase: cfg.Lowercase,
			MinLength: cfg.MinLength,
			Stopwords: cfg.Stopwords,
			Stem:      cfg.Stem,
		}), nil
	case "whitespace":
		return Whitespace, nil
	case "japanese":
		reading, err := ParseReading(cfg.Reading)
		if err != nil {
			return nil, err
		}
		return NewJapanese(reading)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", cfg.Name)
	}
}

// Describe renders the processor selected by cfg as a stable string. It is
// stored with persisted indexes so a snapshot is never queried through a
// different processor than the one that built it.
func Describe(cfg config.TokenizerConfig) string {
	switch cfg.Name {
	case "whitespace":
		return "whitespace"
	case "japanese":
		reading := cfg.Reading
		if reading == "" {
			reading = "surface"
		}
		return "japanese(reading=" + reading + ")"
	default:
		return fmt.Sprintf("standard(lowercase=%t,stopwords=%t,stem=%t,min=%d)",
			cfg.Lowercase, cfg.Stopwords, cfg.Stem, cfg.MinLength)
	}
}
