package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"goresearch/domain/research"
	"goresearch/internal/errors"
	"goresearch/ports"
)

// HTTPConfig describes a JSON search endpoint
type HTTPConfig struct {
	BaseURL    string            `json:"base_url"`
	Headers    map[string]string `json:"headers,omitempty"`
	AuthMethod string            `json:"auth_method"` // "none", "bearer", "api_key"
	AuthToken  string            `json:"auth_token,omitempty"`
	DataPath   string            `json:"data_path"` // gjson path of the result array
	License    string            `json:"license"`
	MaxResults int               `json:"max_results"`
	Timeout    time.Duration     `json:"timeout"`
}

// content and title fields tried in order on each record
var (
	contentFields = []string{"summary", "abstract", "content", "text", "body"}
	titleFields   = []string{"title", "name", "headline"}
	urlFields     = []string{"url", "link", "entry_id", "id"}
	licenseFields = []string{"license", "rights"}
)

// HTTPConnector queries a JSON search API and maps records to documents
type HTTPConnector struct {
	config HTTPConfig
	client *http.Client
}

func NewHTTPConnector(cfg HTTPConfig, client *http.Client) *HTTPConnector {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &HTTPConnector{config: cfg, client: client}
}

// Fetch issues GET base_url?q=topic&source=...&max_results=n
func (c *HTTPConnector) Fetch(ctx context.Context, topic string, source research.DataSource) ([]ports.RawDocument, error) {
	req, err := c.buildRequest(ctx, c.buildURL(topic, source))
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError(string(source), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.ExternalServiceError(string(source), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.ExternalServiceError(string(source), fmt.Errorf("status %d", resp.StatusCode))
	}

	return c.parseResponse(body, source)
}

func (c *HTTPConnector) buildURL(topic string, source research.DataSource) string {
	params := url.Values{}
	params.Set("q", topic)
	params.Set("source", string(source))
	params.Set("max_results", fmt.Sprintf("%d", c.config.MaxResults))
	return c.config.BaseURL + "?" + params.Encode()
}

// buildRequest creates an HTTP request with authentication
func (c *HTTPConnector) buildRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	switch c.config.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", c.config.AuthToken)
	}
	return req, nil
}

// parseResponse extracts records from the JSON body using the data path
func (c *HTTPConnector) parseResponse(body []byte, source research.DataSource) ([]ports.RawDocument, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", source)
	}
	dataPath := c.config.DataPath
	if dataPath == "" {
		dataPath = "@this"
	}

	data := gjson.GetBytes(body, dataPath)
	if !data.Exists() {
		return nil, fmt.Errorf("data path '%s' not found in response", dataPath)
	}

	var records []gjson.Result
	switch {
	case data.IsArray():
		records = data.Array()
	case data.IsObject():
		records = []gjson.Result{data}
	default:
		return nil, fmt.Errorf("data path '%s' is not an array or object", dataPath)
	}

	docs := make([]ports.RawDocument, 0, len(records))
	for _, rec := range records {
		content := firstString(rec, contentFields)
		if content == "" {
			continue
		}
		license := firstString(rec, licenseFields)
		if license == "" {
			license = c.config.License
		}
		docs = append(docs, ports.RawDocument{
			Content: content,
			Metadata: map[string]string{
				research.MetaTitle:      firstString(rec, titleFields),
				research.MetaProvenance: provenanceTag(c.config.BaseURL, source),
				research.MetaLicense:    license,
				research.MetaURL:        firstString(rec, urlFields),
				research.MetaYear:       rec.Get("year").String(),
			},
		})
		if len(docs) == c.config.MaxResults {
			break
		}
	}
	return docs, nil
}

func firstString(rec gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := rec.Get(f); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func provenanceTag(base string, source research.DataSource) string {
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		return u.Host
	}
	return "http:" + string(source)
}
