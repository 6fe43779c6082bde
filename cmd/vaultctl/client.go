package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atmx/vault-engine/internal/api"
)

// as a CLI application it is short lived, so global flags are fine.
var (
	serverURL      = flag.String("server", "http://localhost:8080", "base URL of the vault engine")
	caller         = flag.String("caller", "", "identity submitting the operation")
	idempotencyKey = flag.String("idempotency-key", "", "optional key making a mutating call safe to retry")
)

// client is a minimal JSON client for the vault API.
type client struct {
	base string
	http *http.Client
	key  string
}

func newClient() *client {
	return &client{
		base: strings.TrimRight(*serverURL, "/") + "/api/v1",
		http: &http.Client{Timeout: 15 * time.Second},
		key:  *idempotencyKey,
	}
}

// apiError is a non-2xx response decoded from the server.
type apiError struct {
	Status int
	api.ErrorResponse
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%s, HTTP %d)", e.ErrorResponse.Error, e.Code, e.Status)
}

func (c *client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost && c.key != "" {
		req.Header.Set(api.IdempotencyHeader, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&e.ErrorResponse); err != nil {
			e.ErrorResponse.Error = resp.Status
		}
		return e
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
