package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
	FormattedAddress string `json:"formatted_address"`
	PartialMatch     bool   `json:"partial_match"`
}

// GoogleProvider geocodes via the Google Geocoding API. It is only
// available when an API key is configured.
type GoogleProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewGoogleProvider creates a GoogleProvider. Empty baseURL uses the
// public endpoint.
func NewGoogleProvider(httpClient *http.Client, baseURL, apiKey string) *GoogleProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultGoogleURL
	}
	return &GoogleProvider{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// Name implements Provider.
func (p *GoogleProvider) Name() ProviderID { return ProviderGoogle }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, query string, opts QueryOptions) (*Candidate, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}
	if opts.Region != "" {
		params.Set("region", strings.ToLower(opts.Region))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}
	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Candidate{Matched: false, Provider: ProviderGoogle}, nil
	}

	top := googleResp.Results[0]
	lat := top.Geometry.Location.Lat
	lng := top.Geometry.Location.Lng
	if lat == 0 && lng == 0 {
		return &Candidate{Matched: false, Provider: ProviderGoogle}, nil
	}

	return &Candidate{
		Latitude:    lat,
		Longitude:   lng,
		Confidence:  scoreGoogle(top.Geometry.LocationType, top.PartialMatch, len(top.AddressComponents)),
		Provider:    ProviderGoogle,
		DisplayName: top.FormattedAddress,
		Metadata: map[string]string{
			"location_type": top.Geometry.LocationType,
		},
		Matched: true,
	}, nil
}

// scoreGoogle derives a 0-100 confidence from Google's precision tier,
// partial-match flag, and address-component richness.
func scoreGoogle(locationType string, partial bool, components int) int {
	score := 50

	switch strings.ToUpper(locationType) {
	case "ROOFTOP":
		score += 40
	case "RANGE_INTERPOLATED":
		score += 30
	case "GEOMETRIC_CENTER":
		score += 20
	default: // APPROXIMATE and anything unrecognized
		score += 10
	}

	if partial {
		score -= 15
	}

	switch {
	case components >= 6:
		score += 10
	case components >= 4:
		score += 5
	}

	return clamp(score, 0, 100)
}
