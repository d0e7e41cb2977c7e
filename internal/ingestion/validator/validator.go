// Package validator checks ingestion requests and reports every failing
// field at once.
package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion"
)

const (
	maxNameLength        = 512
	maxTitleLength       = 1024
	maxDescriptionLength = 1 << 20
	maxAppIDLength       = 255
)

// ValidationError holds per-field failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest requires something to index (title or description)
// and something to name the document by (name, title or app ID).
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(req.Name)
	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)
	appID := strings.TrimSpace(req.AppID)

	if name == "" && title == "" && appID == "" {
		errs["name"] = "one of name, title or app_id is required"
	} else if len(name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d bytes", maxNameLength)
	}
	if title == "" && desc == "" {
		errs["description"] = "title or description is required"
	}
	if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	}
	if len(desc) > maxDescriptionLength {
		errs["description"] = fmt.Sprintf("description must be at most %d bytes", maxDescriptionLength)
	}
	if len(appID) > maxAppIDLength {
		errs["app_id"] = fmt.Sprintf("app_id must be at most %d bytes", maxAppIDLength)
	}
	if u := strings.TrimSpace(req.URL); u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs["url"] = "url must be an absolute http(s) URL"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
