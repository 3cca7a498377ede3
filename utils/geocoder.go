package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"prospectflow/models"
)

const geocodeTimeout = 15 * time.Second

// MissingCoordinatesSQL selects contacts whose document lacks a resolved
// coordinate pair. Geocoding writes latitude/longitude into the document,
// so re-runs skip contacts already resolved.
const MissingCoordinatesSQL = "((data ->> 'latitude') IS NULL OR (data ->> 'longitude') IS NULL)"

// NominatimClient queries the OpenStreetMap Nominatim search API. The
// usage policy requires an identifying User-Agent and at most one request
// per second; the pacing is enforced by the caller.
type NominatimClient struct {
	BaseURL   string
	UserAgent string
	client    *fasthttp.Client
}

// NewNominatimClient builds a client for the given endpoint. Empty
// arguments fall back to the public Nominatim instance.
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "prospectflow/1.0"
	}
	return &NominatimClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		client: &fasthttp.Client{
			ReadTimeout:  geocodeTimeout,
			WriteTimeout: geocodeTimeout,
		},
	}
}

// GeocodeResult is one resolved coordinate pair. Nominatim returns
// lat/lon as strings and they are stored as-is in the document.
type GeocodeResult struct {
	Latitude  string `json:"lat"`
	Longitude string `json:"lon"`
}

// Geocode resolves a free-form address. A nil result with nil error means
// Nominatim found no match, which is not a failure.
func (nc *NominatimClient) Geocode(query string) (*GeocodeResult, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(nc.BaseURL + "/search?format=json&limit=1&q=" + url.QueryEscape(query))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(nc.UserAgent)

	if err := nc.client.DoTimeout(req, resp, geocodeTimeout); err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode())
	}

	var results []GeocodeResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, fmt.Errorf("failed to parse nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// BuildAddress joins the values of the configured document fields with the
// separator, skipping fields the document does not carry.
func BuildAddress(doc models.JSONMap, fields []string, separator string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		v, ok := doc.Field(field)
		if !ok {
			continue
		}
		if s := StringifyField(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, separator)
}

// AddressCandidates lists the lookup strings to try for one contact, most
// specific first: the full template, then the template with leading fields
// dropped (street-level detail often confuses the search), finally the
// full address with the configured country suffix appended.
func AddressCandidates(doc models.JSONMap, tmpl models.GeocodingTemplate) []string {
	var candidates []string
	seen := map[string]struct{}{}
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		candidates = append(candidates, s)
	}

	for start := 0; start < len(tmpl.Fields); start++ {
		add(BuildAddress(doc, tmpl.Fields[start:], tmpl.Separator))
	}
	if tmpl.CountrySuffix != "" {
		if full := BuildAddress(doc, tmpl.Fields, tmpl.Separator); full != "" {
			add(full + tmpl.Separator + tmpl.CountrySuffix)
		}
	}

	return candidates
}
