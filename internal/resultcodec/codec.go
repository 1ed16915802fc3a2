// Package resultcodec decodes the JSON payload the external engine emits on
// its standard output channel.
package resultcodec

import (
	"bytes"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mbellhart/crawlcache/internal/scrape"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record mirrors one engine result object. Field names are fixed by the
// engine wrapper's output contract.
type Record struct {
	Success       bool   `json:"success"`
	Markdown      string `json:"markdown"`
	URL           string `json:"url"`
	StatusCode    int    `json:"status_code"`
	Title         string `json:"title"`
	ContentLength int    `json:"content_length"`
	Error         string `json:"error"`
}

// rawSampleLimit bounds how much unparseable output is echoed back in
// failure messages.
const rawSampleLimit = 256

// DecodeSingle parses one engine record from raw stdout.
func DecodeSingle(raw []byte) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Record{}, fmt.Errorf("empty engine output")
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, fmt.Errorf("decode engine record: %w", err)
	}
	return rec, nil
}

// DecodeBatch parses the aggregate record list emitted in batch mode.
func DecodeBatch(raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty engine output")
	}
	var recs []Record
	if err := json.Unmarshal(trimmed, &recs); err != nil {
		return nil, fmt.Errorf("decode engine record list: %w", err)
	}
	return recs, nil
}

// Outcome converts a decoded record into the outcome the rest of the system
// consumes. The engine may report its own fetch failure inside a well-formed
// record; that is distinct from invocation-level failures. The requested URL
// is kept as the outcome URL: the engine may report a normalized or
// post-redirect address, and keying the cache on it would make lookups by the
// requested URL miss forever. The record's URL fills in only when no request
// URL is known.
func (r Record) Outcome(url string) scrape.ExecutionOutcome {
	if url == "" {
		url = r.URL
	}
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "engine reported failure without a message"
		}
		return scrape.Failure(url, scrape.FailureEngineReported, msg)
	}
	length := r.ContentLength
	if length == 0 {
		length = len(r.Markdown)
	}
	return scrape.ExecutionOutcome{
		URL:              url,
		Succeeded:        true,
		Title:            r.Title,
		Body:             r.Markdown,
		StatusCode:       r.StatusCode,
		RawContentLength: length,
	}
}

// RawSample returns a truncated, printable slice of raw output for use in
// malformed-response messages.
func RawSample(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > rawSampleLimit {
		s = s[:rawSampleLimit] + "..."
	}
	return s
}
