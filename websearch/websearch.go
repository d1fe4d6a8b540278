// Package websearch serves the web_search stage: it queries an HTML search
// endpoint, extracts result snippets, and returns them as cited passages
// carrying the source URL for credibility scoring.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/pkg/logging"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// Config controls the search client.
type Config struct {
	Endpoint   string
	MaxResults int
	Timeout    time.Duration
	UserAgent  string
}

// DefaultConfig returns default search configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:   defaultEndpoint,
		MaxResults: 5,
		Timeout:    15 * time.Second,
		UserAgent:  "prism/1.0",
	}
}

// Client queries the HTML search endpoint and parses results.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a search client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.WithComponent("websearch"),
	}
}

// Search returns passages for the query, each carrying its source URL.
func (c *Client) Search(ctx context.Context, query string) ([]eval.Passage, error) {
	endpoint := fmt.Sprintf("%s?q=%s", c.cfg.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	passages := parseResults(doc, c.cfg.MaxResults)
	c.logger.Info("web search completed", "query", query, "results", len(passages))
	return passages, nil
}

// parseResults extracts (title, url, snippet) triples from the result list.
func parseResults(doc *goquery.Document, max int) []eval.Passage {
	var passages []eval.Passage
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(passages) >= max {
			return false
		}

		link := s.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())

		if title == "" || snippet == "" {
			return true
		}

		passages = append(passages, eval.Passage{
			Text:     snippet,
			Citation: title,
			URL:      resolveResultURL(href),
		})
		return true
	})
	return passages
}

// resolveResultURL unwraps the redirect URLs the endpoint returns, falling
// back to the raw href.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	if u.Host == "" {
		return href
	}
	return href
}

// ExtractText performs a lightweight content extraction from a fetched HTML
// page, keeping headings, paragraphs, and list items.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var out []string
	doc.Find("h1,h2,h3,p,li").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+text)
		case "h2":
			out = append(out, "## "+text)
		case "h3":
			out = append(out, "### "+text)
		case "li":
			out = append(out, "- "+text)
		default:
			out = append(out, text)
		}
	})
	return strings.Join(out, "\n\n"), nil
}
