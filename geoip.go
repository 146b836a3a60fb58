package jobsculpt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultGeoBaseURL = "http://ip-api.com/json"
	geoFields         = "status,message,country,city,timezone,continent,currency"
)

// HTTPGeoLocator queries an ip-api.com compatible JSON endpoint
type HTTPGeoLocator struct {
	BaseURL string
	Client  *http.Client
}

var _ GeoLocator = (*HTTPGeoLocator)(nil)

// NewHTTPGeoLocator returns a locator for baseURL, DefaultGeoBaseURL when empty
func NewHTTPGeoLocator(baseURL string, client *http.Client) *HTTPGeoLocator {
	if baseURL == "" {
		baseURL = DefaultGeoBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultGeoTimeout}
	}
	return &HTTPGeoLocator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

type geoResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Timezone  string `json:"timezone"`
	Continent string `json:"continent"`
	Currency  string `json:"currency"`
}

func (g *HTTPGeoLocator) Lookup(ctx context.Context, ip string) (Location, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=%s", g.BaseURL, url.PathEscape(ip), geoFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to build geo request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := g.Client.Do(req)
	if err != nil {
		return Location{}, goerrors.Wrap(err, goerrors.CategoryExternal, "geo lookup request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Location{}, goerrors.New(fmt.Sprintf("geo lookup returned status %d", res.StatusCode), goerrors.CategoryExternal)
	}

	var payload geoResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Location{}, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to decode geo response")
	}

	if payload.Status != "" && payload.Status != "success" {
		return Location{}, goerrors.New("geo lookup failed: "+payload.Message, goerrors.CategoryExternal)
	}

	return Location{
		Country:   payload.Country,
		City:      payload.City,
		TimeZone:  payload.Timezone,
		Continent: payload.Continent,
		Currency:  payload.Currency,
	}, nil
}
