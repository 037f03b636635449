// Package geo resolves a client IP to a "country, city" region string.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Locator looks up the region of an IP address
type Locator interface {
	Region(ctx context.Context, ip string) (string, error)
}

// HTTPLocator queries a geolocation-db compatible JSON endpoint
type HTTPLocator struct {
	urlTemplate string
	httpClient  *http.Client
}

type response struct {
	CountryName string `json:"country_name"`
	City        string `json:"city"`
}

// NewHTTPLocator creates a locator; urlTemplate must contain an {ip} placeholder
func NewHTTPLocator(urlTemplate string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Region returns "country, city" for ip
func (l *HTTPLocator) Region(ctx context.Context, ip string) (string, error) {
	endpoint := strings.ReplaceAll(l.urlTemplate, "{ip}", url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation lookup failed: status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geolocation response: %w", err)
	}
	return fmt.Sprintf("%s, %s", body.CountryName, body.City), nil
}
