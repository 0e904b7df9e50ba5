package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// nominatimResult is one element of the Nominatim search response
// (format=jsonv2). Coordinates arrive as strings.
type nominatimResult struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Category    string            `json:"category"`
	Type        string            `json:"type"`
	Importance  *float64          `json:"importance"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// NominatimProvider geocodes via the OpenStreetMap Nominatim API.
type NominatimProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatimProvider creates a NominatimProvider. Empty baseURL uses
// the public endpoint; userAgent identifies the caller as Nominatim's
// usage policy requires.
func NewNominatimProvider(httpClient *http.Client, baseURL, userAgent string) *NominatimProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	return &NominatimProvider{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent}
}

// Name implements Provider.
func (p *NominatimProvider) Name() ProviderID { return ProviderNominatim }

// Available implements Provider. Nominatim needs no credential.
func (p *NominatimProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string, opts QueryOptions) (*Candidate, error) {
	params := url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	if opts.Region != "" {
		params.Set("countrycodes", strings.ToLower(opts.Region))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(results) == 0 {
		return &Candidate{Matched: false, Provider: ProviderNominatim}, nil
	}

	top := results[0]
	lat, latErr := strconv.ParseFloat(top.Lat, 64)
	lon, lonErr := strconv.ParseFloat(top.Lon, 64)
	if latErr != nil || lonErr != nil || (lat == 0 && lon == 0) {
		return &Candidate{Matched: false, Provider: ProviderNominatim}, nil
	}

	return &Candidate{
		Latitude:    lat,
		Longitude:   lon,
		Confidence:  scoreNominatim(top),
		Provider:    ProviderNominatim,
		DisplayName: top.DisplayName,
		Metadata: map[string]string{
			"place_category": top.Category,
			"place_type":     top.Type,
		},
		Matched: true,
	}, nil
}

// scoreNominatim derives a 0-100 confidence from a Nominatim result:
// importance scaled into 0-50 (default 30 when absent), a place-class
// bonus, a penalty for administrative-boundary matches, and a bonus
// for address-detail richness.
func scoreNominatim(r nominatimResult) int {
	score := 30
	if r.Importance != nil {
		score = clamp(int(*r.Importance*50), 0, 50)
	}

	switch r.Category {
	case "building", "shop", "commercial", "amenity", "office":
		score += 30
	case "residential", "industrial", "landuse":
		score += 20
	case "highway", "road":
		score += 15
	default:
		score += 10
	}

	if r.Category == "boundary" || r.Type == "administrative" {
		score -= 20
	}

	switch {
	case len(r.Address) >= 5:
		score += 10
	case len(r.Address) >= 3:
		score += 5
	}

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
