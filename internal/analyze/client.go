// Package analyze talks to the external spatial-intersection service.
// The service is a black box: one GeoJSON feature out, one restriction
// report back; a separate endpoint parses uploaded spatial files into
// feature collections.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/report"
)

// ErrAnalysisFailed marks a failed analysis request: network failure,
// non-success status, or a malformed report body. Any feature failing
// aborts its whole batch.
var ErrAnalysisFailed = errors.New("analysis request failed")

// ErrUploadFailed marks a rejected or unparseable upload.
var ErrUploadFailed = errors.New("upload parse failed")

// Analyzer produces a restriction report for a single feature.
type Analyzer interface {
	Analyze(ctx context.Context, feature *geojson.Feature) (report.Report, error)
}

// Uploader converts an opaque spatial file into a feature collection.
type Uploader interface {
	Upload(ctx context.Context, filename string, contents io.Reader) (*geojson.FeatureCollection, error)
}

// Client is the HTTP implementation of Analyzer and Uploader.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the analysis service at baseURL. A nil
// httpClient gets a 60s-timeout default; intersection queries against
// large layers are slow.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Analyze posts one feature to the report endpoint and decodes the
// restriction report. The returned report is normalized.
func (c *Client) Analyze(ctx context.Context, feature *geojson.Feature) (report.Report, error) {
	body, err := feature.MarshalJSON()
	if err != nil {
		return report.Report{}, fmt.Errorf("%w: encode feature: %s", ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/reporte-predio", bytes.NewReader(body))
	if err != nil {
		return report.Report{}, fmt.Errorf("%w: %s", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return report.Report{}, fmt.Errorf("%w: %s", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return report.Report{}, fmt.Errorf("%w: status %d", ErrAnalysisFailed, resp.StatusCode)
	}

	var rep report.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return report.Report{}, fmt.Errorf("%w: decode report: %s", ErrAnalysisFailed, err)
	}
	rep.Normalize()

	logger.L().Debug("analysis done",
		"area_total_ha", rep.AreaTotalHa,
		"duration_ms", time.Since(t0).Milliseconds())
	return rep, nil
}

// uploadError is the error payload of the upload endpoint. The detail
// message is meant to be shown to the user as-is.
type uploadError struct {
	Detail string `json:"detail"`
}

// Upload sends a spatial file to the parsing endpoint and decodes the
// resulting feature collection.
func (c *Client) Upload(ctx context.Context, filename string, contents io.Reader) (*geojson.FeatureCollection, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-predio", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Surface the service's human-readable detail when it sends one.
		var ue uploadError
		if json.NewDecoder(resp.Body).Decode(&ue) == nil && ue.Detail != "" {
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, ue.Detail)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode feature collection: %s", ErrUploadFailed, err)
	}
	return fc, nil
}
