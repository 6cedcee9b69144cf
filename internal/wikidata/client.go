// Package wikidata resolves entity identifiers (QIDs) to human-readable
// labels via the Wikidata wbgetentities API.
package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/retry"
)

// MaxBatchSize is the wbgetentities limit on IDs per request.
const MaxBatchSize = 50

// Sentinel errors for Wikidata API failures.
var (
	ErrUnreachable  = errors.New("wikidata api unreachable")
	ErrTimeout      = errors.New("wikidata api timeout")
	ErrBadStatus    = errors.New("wikidata api returned error status")
	ErrBadResponse  = errors.New("unexpected wikidata api response")
	ErrBatchTooLong = errors.New("too many ids in one batch")
)

// Client is the interface for label resolution.
type Client interface {
	// Labels resolves up to MaxBatchSize QIDs in the given languages. The
	// returned map holds, per QID, the label in the first language that has
	// one; a QID with no label in any requested language maps to itself.
	Labels(ctx context.Context, qids []string, languages []string) (map[string]string, error)
}

// HTTPClient implements Client against the Wikidata action API.
type HTTPClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPClient creates a Wikidata API client.
func NewHTTPClient(baseURL, userAgent string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Labels(ctx context.Context, qids []string, languages []string) (map[string]string, error) {
	if len(qids) == 0 {
		return map[string]string{}, nil
	}
	if len(qids) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLong, len(qids), MaxBatchSize)
	}

	params := url.Values{
		"action":    {"wbgetentities"},
		"ids":       {strings.Join(qids, "|")},
		"props":     {"labels"},
		"languages": {strings.Join(languages, "|")},
		"format":    {"json"},
	}

	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, retry.Transient(statusErr)
		}
		return nil, statusErr
	}

	var body entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	result := make(map[string]string, len(qids))
	for _, qid := range qids {
		result[qid] = pickLabel(body.Entities[qid].Labels, languages, qid)
	}
	return result, nil
}

// pickLabel walks the language preference list and falls back to the raw
// identifier when no label exists in any of them.
func pickLabel(labels map[string]labelValue, languages []string, qid string) string {
	for _, lang := range languages {
		if l, ok := labels[lang]; ok && l.Value != "" {
			return l.Value
		}
	}
	return qid
}

// classifyError maps transport-level errors to sentinel errors, marking
// network faults and timeouts as transient.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient(fmt.Errorf("%w: %v", ErrTimeout, err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient(fmt.Errorf("%w: %v", ErrTimeout, err))
	}

	return retry.Transient(fmt.Errorf("%w: %v", ErrUnreachable, err))
}

// --- Wikidata response types ---

type labelValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type entitiesResponse struct {
	Entities map[string]struct {
		Labels map[string]labelValue `json:"labels"`
	} `json:"entities"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
