// Package parser reads interactive query lines of the form
// "<query text> <k>".
package parser

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

// Request is one parsed line.
type Request struct {
	Text string
	K    int
	// ExplicitK reports whether the line ended in a count.
	ExplicitK bool
}

// Parse splits line into query text and k. The last whitespace-separated
// field is taken as k when it parses as an integer and something precedes
// it; otherwise the whole line is the query and defaultK applies. A
// negative k is rejected with ErrInvalidArgument. maxK > 0 caps k.
func Parse(line string, defaultK, maxK int) (Request, error) {
	line = strings.TrimSpace(line)
	req := Request{Text: line, K: defaultK}

	cut := strings.LastIndexAny(line, " \t")
	if cut >= 0 {
		if k, err := strconv.Atoi(line[cut+1:]); err == nil {
			if k < 0 {
				return Request{}, fmt.Errorf("k = %d: %w", k, apperrors.ErrInvalidArgument)
			}
			req.Text = strings.TrimSpace(line[:cut])
			req.K = k
			req.ExplicitK = true
		}
	}
	if maxK > 0 && req.K > maxK {
		req.K = maxK
	}
	return req, nil
}

// Command reports whether line is one of the loop's control words.
func Command(line string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case ":q", ":quit", "exit", "quit":
		return "quit", true
	case ":stats":
		return "stats", true
	case ":help", "?":
		return "help", true
	}
	return "", false
}
