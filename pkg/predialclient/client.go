// Package predialclient is a small Go client for the predial API.
package predialclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to a running predial server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

// Health is the health check response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Parcel is one accumulated session record with its derived metrics.
type Parcel struct {
	ID                int64   `json:"id"`
	Name              string  `json:"featureName"`
	AreaTotalHa       float64 `json:"area_total_ha"`
	RestrictedHa      float64 `json:"area_restringida_ha"`
	FreeHa            float64 `json:"area_libre_ha"`
	PercentRestricted float64 `json:"porcentaje_restringido"`
	HasRestrictions   bool    `json:"tiene_restricciones"`
}

// ParcelList is the session listing response.
type ParcelList struct {
	Parcels []Parcel `json:"parcels"`
	Count   int      `json:"count"`
}

// GetHealth checks service liveness.
func (c *Client) GetHealth(ctx context.Context) (Health, error) {
	var out Health
	return out, c.get(ctx, "/health", &out)
}

// ListParcels returns the accumulated session records.
func (c *Client) ListParcels(ctx context.Context) (ParcelList, error) {
	var out ParcelList
	return out, c.get(ctx, "/api/v1/parcels", &out)
}

// Analyze submits raw GeoJSON (Feature or FeatureCollection) as one
// analysis batch and returns the created records.
func (c *Client) Analyze(ctx context.Context, geojsonBody []byte) (ParcelList, error) {
	var out ParcelList
	return out, c.do(ctx, http.MethodPost, "/api/v1/parcels", geojsonBody, &out)
}

// ClearSession empties the session.
func (c *Client) ClearSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/parcels", nil, nil)
}

// SetLayerVisibility toggles one reference layer.
func (c *Client) SetLayerVisibility(ctx context.Context, layerID string, visible bool) (map[string]bool, error) {
	body, err := json.Marshal(map[string]bool{"visible": visible})
	if err != nil {
		return nil, err
	}
	var out map[string]bool
	return out, c.do(ctx, http.MethodPut, "/api/v1/layers/"+layerID, body, &out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
