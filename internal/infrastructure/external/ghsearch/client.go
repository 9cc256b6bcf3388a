// Package ghsearch implements domain/service.RepoClient against a
// GitHub-shaped repository search and contents API.
package ghsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
	"github.com/harvestlab/repoharvester/internal/domain/service"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1 // requests per second, conservative for an unauthenticated-adjacent budget
	perPage          = 100
)

// Client implements service.RepoClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     service.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithLogger(logger service.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond) }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new search/readme client. token may be empty, in which
// case requests are sent unauthenticated at a much lower rate limit.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  noopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type searchResponseItem struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Name        string   `json:"name"`
	HTMLURL     string   `json:"html_url"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Fork        bool     `json:"fork"`
	Archived    bool     `json:"archived"`
	Size        int      `json:"size"`
	Description string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type searchResponse struct {
	TotalCount int                   `json:"total_count"`
	Items      []searchResponseItem  `json:"items"`
}

// Search runs one page of the repository search endpoint.
func (c *Client) Search(ctx context.Context, query string, page int) (*service.SearchPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domainerrors.Transient(fmt.Errorf("rate limit wait: %w", err))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))

	reqURL := fmt.Sprintf("%s/search/repositories?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domainerrors.Fatal(fmt.Errorf("build search request: %w", err))
	}
	c.setHeaders(req)

	c.logger.Debug("search request", "query", query, "page", page)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.Transient(fmt.Errorf("search request: %w", err))
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, domainerrors.Transient(fmt.Errorf("read search response: %w", readErr))
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitErrFromHeaders(resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.Transient(fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domainerrors.Validation(fmt.Errorf("decode search response: %w", err))
	}

	items := make([]service.SearchResult, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, service.SearchResult{
			ID:          it.ID,
			FullName:    it.FullName,
			Name:        it.Name,
			Owner:       it.Owner.Login,
			HTMLURL:     it.HTMLURL,
			Stars:       it.Stars,
			Forks:       it.Forks,
			Language:    it.Language,
			Topics:      it.Topics,
			Fork:        it.Fork,
			Archived:    it.Archived,
			SizeKB:      it.Size,
			Description: it.Description,
			CreatedAt:   it.CreatedAt,
			UpdatedAt:   it.UpdatedAt,
			PushedAt:    it.PushedAt,
		})
	}

	hasMore := page*perPage < parsed.TotalCount && len(parsed.Items) > 0

	return &service.SearchPage{
		Items:    items,
		Raw:      [][]byte{body},
		HasMore:  hasMore,
		NextPage: page + 1,
	}, nil
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetReadme fetches the default README for fullName. found is false (with a
// nil error) when the repo genuinely has no README.
func (c *Client) GetReadme(ctx context.Context, fullName string) (string, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, domainerrors.Transient(fmt.Errorf("rate limit wait: %w", err))
	}

	reqURL := fmt.Sprintf("%s/repos/%s/readme", c.baseURL, fullName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false, domainerrors.Fatal(fmt.Errorf("build readme request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, domainerrors.Transient(fmt.Errorf("readme request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return "", false, rateLimitErrFromHeaders(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, domainerrors.Transient(fmt.Errorf("read readme response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, domainerrors.Transient(fmt.Errorf("readme returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed readmeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, domainerrors.Validation(fmt.Errorf("decode readme response: %w", err))
	}

	content, err := decodeReadmeContent(parsed)
	if err != nil {
		return "", false, domainerrors.Validation(fmt.Errorf("decode readme content: %w", err))
	}

	return content, true, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func rateLimitErrFromHeaders(resp *http.Response) error {
	resetAt := time.Now().Add(time.Minute)
	if v := resp.Header.Get("x-ratelimit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(epoch, 0)
		}
	}
	return &domainerrors.RateLimitError{StatusCode: resp.StatusCode, ResetAt: resetAt}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)             {}
func (noopLogger) Info(string, ...any)              {}
func (noopLogger) Warn(string, ...any)              {}
func (noopLogger) Error(string, ...any)             {}
func (n noopLogger) With(...any) service.Logger      { return n }

var _ service.RepoClient = (*Client)(nil)
