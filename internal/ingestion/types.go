// Package ingestion accepts listings pushed over HTTP, alongside the ones the
// crawler collects, and routes them into the document store.
package ingestion

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
)

// IngestRequest is the JSON body of POST /api/v1/documents. Name defaults
// to the title, then to the app ID, the same rule the crawler uses.
type IngestRequest struct {
	Name        string `json:"name"`
	AppID       string `json:"app_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Document converts the request, stamping it with at.
func (r IngestRequest) Document(at time.Time) store.Document {
	d := store.Document{
		Name:        strings.TrimSpace(r.Name),
		AppID:       strings.TrimSpace(r.AppID),
		URL:         strings.TrimSpace(r.URL),
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		FetchedAt:   at.UTC(),
	}
	if d.Name == "" {
		d.Name = d.Title
	}
	if d.Name == "" {
		d.Name = d.AppID
	}
	return d
}

const (
	StatusStored = "stored"
	StatusQueued = "queued"
)

// IngestResponse tells the caller whether the document was written to the
// store directly or queued on the listings topic.
type IngestResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}
