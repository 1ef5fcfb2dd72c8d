package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/internal/httpclient"
)

// HTTPProvider reads records from a hosted CRM API. The wire contract
// is GET {base}/{collection}/{id} returning a JSON object; a top-level
// "properties" object is flattened when present, matching the shape
// the hosted CRM APIs return.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *httpclient.SaferClient
}

// NewHTTPProvider builds a provider from configuration.
func NewHTTPProvider(cfg config.ProviderConfig) (*HTTPProvider, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.NewValidationError("provider base URL must not be empty")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := httpclient.NewSaferClient(timeout)
	if _, err := client.ValidateURL(base); err != nil {
		return nil, errors.MarkValidation(errors.Wrap(err, "provider base URL rejected"))
	}

	return &HTTPProvider{
		baseURL: base,
		token:   cfg.Token,
		client:  client,
	}, nil
}

func (p *HTTPProvider) FetchCompany(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(ctx, crm.TypeCompany, id)
}

func (p *HTTPProvider) FetchContact(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(ctx, crm.TypeContact, id)
}

func (p *HTTPProvider) FetchDeal(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(ctx, crm.TypeDeal, id)
}

func (p *HTTPProvider) fetch(ctx context.Context, entityType crm.EntityType, id string) (map[string]any, error) {
	if id == "" {
		return nil, errors.NewValidationError("fetch %s requires an id", entityType)
	}

	url := fmt.Sprintf("%s/%s/%s", p.baseURL, entityType.Collection(), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.MarkIntegration(errors.Wrapf(err, "build request for %s %s", entityType, id))
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.MarkIntegration(errors.Wrapf(err, "fetch %s %s", entityType, id))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFoundError("%s %s", entityType, id)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewIntegrationError("fetch %s %s: provider returned %d", entityType, id, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.MarkIntegration(errors.Wrapf(err, "decode %s %s", entityType, id))
	}

	// Hosted CRMs nest the field map under "properties"; flatten it so
	// callers see one bag either way.
	if props, ok := body["properties"].(map[string]any); ok {
		flat := make(map[string]any, len(body)+len(props))
		for k, v := range body {
			if k == "properties" {
				continue
			}
			flat[k] = v
		}
		for k, v := range props {
			flat[k] = v
		}
		return flat, nil
	}
	return body, nil
}

// NewProvider picks the provider implementation for a configuration:
// the hosted API when a base URL is set, the in-memory table otherwise.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		return NewStaticProvider(), nil
	}
	return NewHTTPProvider(cfg)
}
