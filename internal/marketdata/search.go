package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Search resolves a keyword to tradable symbols.
//
// Numeric keywords are treated as exchange codes and validated against
// the chart API directly (a lookup page search would miss them).
// Everything else goes through the provider's lookup page, scraped for
// its result table. Results carry the currency implied by each
// symbol's exchange suffix.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]Quote, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("empty search keyword")
	}
	if limit <= 0 {
		limit = 5
	}

	if isDigits(strings.ToUpper(keyword)) {
		return c.resolveCandidates(ctx, CandidateSymbols(keyword))
	}

	quotes, err := c.searchLookup(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		// Keyword may itself be a symbol the lookup page does not index.
		return c.resolveCandidates(ctx, CandidateSymbols(keyword))
	}
	return quotes, nil
}

// resolveCandidates probes each candidate symbol for recent bars and
// returns the first one the provider recognizes.
func (c *Client) resolveCandidates(ctx context.Context, candidates []string) ([]Quote, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)

	for _, symbol := range candidates {
		bars, err := c.FetchDailyBars(ctx, symbol, from, to)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				continue
			}
			c.logger.WithError(err).WithField("symbol", symbol).Debug("Candidate probe failed")
			continue
		}
		if len(bars) == 0 {
			continue
		}

		return []Quote{{
			Ticker:   symbol,
			Name:     symbol,
			Currency: CurrencyFor(symbol),
		}}, nil
	}

	return nil, nil
}

// searchLookup scrapes the provider's lookup page for matching symbols.
func (c *Client) searchLookup(ctx context.Context, keyword string, limit int) ([]Quote, error) {
	params := url.Values{}
	params.Set("s", keyword)

	fullURL := fmt.Sprintf("%s?%s", c.searchBaseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	quotes, err := parseLookupHTML(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("parse lookup page failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"keyword": keyword,
		"count":   len(quotes),
	}).Debug("Searched symbols")
	return quotes, nil
}

// parseLookupHTML extracts symbol rows from the lookup result table.
// The first cell of each row links to the symbol, the second holds the
// display name.
func parseLookupHTML(r io.Reader, limit int) ([]Quote, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var quotes []Quote
	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}

		symbol := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if symbol == "" {
			return true
		}
		if name == "" {
			name = symbol
		}

		quotes = append(quotes, Quote{
			Ticker:   symbol,
			Name:     name,
			Currency: CurrencyFor(symbol),
		})
		return len(quotes) < limit
	})

	return quotes, nil
}
