package avro

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// RegistryClient speaks the two schema-registry endpoints the pipeline
// consumes: PUT /config/{subject} and POST /subjects/{subject}/versions.
type RegistryClient struct {
	baseURL string
	client  *http.Client
}

// NewRegistryClient builds a client with a short timeout; registration is
// best-effort and must not hold up sink construction for long.
func NewRegistryClient(baseURL string, timeout time.Duration) *RegistryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RegistryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetCompatibility sets the compatibility mode for a subject.
func (c *RegistryClient) SetCompatibility(subject, mode string) error {
	body, err := json.Marshal(map[string]string{"compatibility": mode})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/config/%s", c.baseURL, subject), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", registryContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set compatibility for %s: HTTP %d", subject, resp.StatusCode)
	}
	return nil
}

// RegisterSchema posts the schema for a subject and returns the registry's
// schema ID.
func (c *RegistryClient) RegisterSchema(subject, schema string) (int, error) {
	body, err := json.Marshal(map[string]string{"schema": schema})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/subjects/%s/versions", c.baseURL, subject), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("register schema for %s: HTTP %d", subject, resp.StatusCode)
	}

	var out struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode registry response: %w", err)
	}
	return out.ID, nil
}
