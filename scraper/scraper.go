// Package scraper fetches a web page and reduces it to plain text plus
// metadata, filtering out navigation and advertising boilerplate.
package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pagequery/pagequery/config"
	"github.com/pagequery/pagequery/domain"
)

type Scraper struct {
	client     *http.Client
	userAgent  string
	maxBody    int64
	maxTextLen int
	minTextLen int
	logger     *log.Logger
}

func New(cfg config.ScrapeConfig, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	maxTextLen := cfg.MaxTextLen
	if maxTextLen <= 0 {
		maxTextLen = 100000
	}
	minTextLen := cfg.MinTextLen
	if minTextLen <= 0 {
		minTextLen = 20
	}

	return &Scraper{
		client:     &http.Client{Timeout: timeout},
		userAgent:  cfg.UserAgent,
		maxBody:    maxBody,
		maxTextLen: maxTextLen,
		minTextLen: minTextLen,
		logger:     logger,
	}
}

// Scrape fetches url and returns an immutable Document. The doc id is
// derived from the URL so repeated scrapes of the same page share an id;
// the content hash changes when the page text changes.
func (s *Scraper) Scrape(ctx context.Context, url string) (domain.Document, error) {
	if strings.TrimSpace(url) == "" {
		return domain.Document{}, fmt.Errorf("%w: url is empty", domain.ErrInvalidInput)
	}

	root, err := s.fetch(ctx, url)
	if err != nil {
		return domain.Document{}, err
	}

	text := extractContent(root, s.minTextLen)
	if text == "" {
		return domain.Document{}, fmt.Errorf("%w: no readable content at %s", domain.ErrScrape, url)
	}
	if runes := []rune(text); len(runes) > s.maxTextLen {
		text = string(runes[:s.maxTextLen])
	}

	meta := extractMetadata(root)
	s.logger.Printf("scraped %s: %d chars, title %q", url, len(text), meta.title)

	return domain.Document{
		DocID:       hashHex(url),
		URL:         url,
		Title:       meta.title,
		Description: meta.description,
		Author:      meta.author,
		Text:        text,
		ContentHash: hashHex(text),
		ScrapedAt:   time.Now().UTC(),
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", domain.ErrScrape, url, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrScrape, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %s", domain.ErrScrape, url, resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, parseErr := mime.ParseMediaType(ct)
		if parseErr == nil && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return nil, fmt.Errorf("%w: %s served non-HTML content type %s", domain.ErrScrape, url, mediaType)
		}
	}

	root, err := html.Parse(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML from %s: %v", domain.ErrScrape, url, err)
	}

	return root, nil
}

func hashHex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
