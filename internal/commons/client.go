// Package commons talks to the Wikimedia Commons MediaWiki API: category
// listings, structured-data (depicts) checks, and category name suggestions.
package commons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/retry"
)

// depictsProperty is the structured-data property checked on each file.
const depictsProperty = "P180"

// Sentinel errors for Commons API failures.
var (
	ErrUnreachable = errors.New("commons api unreachable")
	ErrTimeout     = errors.New("commons api timeout")
	ErrBadStatus   = errors.New("commons api returned error status")
	ErrBadResponse = errors.New("unexpected commons api response")
)

// Client is the interface for querying the Commons API.
type Client interface {
	CategoryExists(ctx context.Context, category string) (bool, error)
	CategoryMembers(ctx context.Context, category, cont string) (CategoryPage, error)
	CheckDepicts(ctx context.Context, fileTitle string) (DepictsCheck, error)
	SuggestCategories(ctx context.Context, query string, limit int) ([]string, error)
}

// CategoryPage is one page of category members. An empty Continue token
// signals the final page.
type CategoryPage struct {
	Files    []string
	Continue string
}

// DepictsCheck is the result of checking a single file for depicts statements.
type DepictsCheck struct {
	HasDepicts bool
	QIDs       []string
}

// HTTPClient implements Client against the MediaWiki action API.
type HTTPClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPClient creates a Commons API client. userAgent is required by
// Wikimedia API policy and sent on every request.
func NewHTTPClient(baseURL, userAgent string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// CategoryExists checks whether a category page exists on Commons.
func (c *HTTPClient) CategoryExists(ctx context.Context, category string) (bool, error) {
	params := url.Values{
		"action": {"query"},
		"titles": {category},
		"format": {"json"},
	}

	var resp pagesResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return false, err
	}

	if len(resp.Query.Pages) == 0 {
		return false, nil
	}
	for id := range resp.Query.Pages {
		if id == "-1" {
			return false, nil
		}
	}
	return true, nil
}

// CategoryMembers fetches one page of file titles from a category, in API
// listing order. Pass the previous page's Continue token to fetch the next.
func (c *HTTPClient) CategoryMembers(ctx context.Context, category, cont string) (CategoryPage, error) {
	params := url.Values{
		"action":  {"query"},
		"list":    {"categorymembers"},
		"cmtitle": {category},
		"cmtype":  {"file"},
		"cmlimit": {"500"}, // API maximum per request
		"format":  {"json"},
	}
	if cont != "" {
		params.Set("cmcontinue", cont)
	}

	var resp membersResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return CategoryPage{}, err
	}

	page := CategoryPage{Continue: resp.Continue.CmContinue}
	for _, m := range resp.Query.CategoryMembers {
		page.Files = append(page.Files, m.Title)
	}
	return page, nil
}

// CheckDepicts reports whether a file carries depicts statements and which
// entity IDs they reference. The file's page ID is resolved first, then its
// structured data is fetched under the M-prefixed media ID.
func (c *HTTPClient) CheckDepicts(ctx context.Context, fileTitle string) (DepictsCheck, error) {
	params := url.Values{
		"action": {"query"},
		"titles": {fileTitle},
		"format": {"json"},
	}

	var pages pagesResponse
	if err := c.get(ctx, params, &pages); err != nil {
		return DepictsCheck{}, err
	}

	pageID := ""
	for id := range pages.Query.Pages {
		pageID = id
		break
	}
	if pageID == "" || pageID == "-1" {
		// File not found: treated as "no statement", not an error.
		return DepictsCheck{}, nil
	}

	sdcParams := url.Values{
		"action": {"wbgetentities"},
		"ids":    {"M" + pageID},
		"format": {"json"},
	}

	var sdc entitiesResponse
	if err := c.get(ctx, sdcParams, &sdc); err != nil {
		return DepictsCheck{}, err
	}

	entity, ok := sdc.Entities["M"+pageID]
	if !ok {
		return DepictsCheck{}, nil
	}

	var qids []string
	for _, claim := range entity.Statements[depictsProperty] {
		dv := claim.Mainsnak.Datavalue
		if dv.Type == "wikibase-entityid" && dv.Value.ID != "" {
			qids = append(qids, dv.Value.ID)
		}
	}

	return DepictsCheck{HasDepicts: len(qids) > 0, QIDs: qids}, nil
}

// SuggestCategories returns category names (without the namespace prefix)
// matching the given prefix query.
func (c *HTTPClient) SuggestCategories(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"action":      {"query"},
		"list":        {"prefixsearch"},
		"pssearch":    {"Category:" + query},
		"psnamespace": {"14"},
		"pslimit":     {strconv.Itoa(limit)},
		"format":      {"json"},
	}

	var resp prefixSearchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	suggestions := []string{}
	for _, item := range resp.Query.PrefixSearch {
		title := item.Title
		if len(title) > len("Category:") && title[:len("Category:")] == "Category:" {
			title = title[len("Category:"):]
		}
		if title != "" {
			suggestions = append(suggestions, title)
		}
	}
	return suggestions, nil
}

// get performs one API request and decodes the JSON response into out.
func (c *HTTPClient) get(ctx context.Context, params url.Values, out any) error {
	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
		if resp.StatusCode >= 500 {
			return retry.Transient(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors, marking
// network faults and timeouts as transient so callers may retry them.
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

// --- MediaWiki response types ---

type pagesResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID int    `json:"pageid"`
			Title  string `json:"title"`
		} `json:"pages"`
	} `json:"query"`
}

type membersResponse struct {
	Continue struct {
		CmContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

type entitiesResponse struct {
	Entities map[string]struct {
		Statements map[string][]struct {
			Mainsnak struct {
				Datavalue struct {
					Type  string `json:"type"`
					Value struct {
						ID string `json:"id"`
					} `json:"value"`
				} `json:"datavalue"`
			} `json:"mainsnak"`
		} `json:"statements"`
	} `json:"entities"`
}

type prefixSearchResponse struct {
	Query struct {
		PrefixSearch []struct {
			Title string `json:"title"`
		} `json:"prefixsearch"`
	} `json:"query"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
