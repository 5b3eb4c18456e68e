package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/RestorePortal/internal/gateway"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// client talks to the portal's admin and machine endpoints.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type statusResult struct {
	Updated     bool               `json:"updated"`
	Message     string             `json:"message"`
	Application *model.Application `json:"application"`
}

type dashboard struct {
	Applications []*model.Application `json:"applications"`
	Pending      []*model.Application `json:"pending"`
}

type apiResult struct {
	Success bool              `json:"success"`
	Data    *model.Projection `json:"data"`
	Message string            `json:"message"`
}

type errorResult struct {
	Error string `json:"error"`
}

func (c *client) SetStatus(ctx context.Context, id int64, status model.Status) (*statusResult, error) {
	form := url.Values{
		"ngo_id": {strconv.FormatInt(id, 10)},
		"status": {string(status)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/admin/update-status", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out statusResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Applications(ctx context.Context) ([]*model.Application, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/admin/dashboard", nil)
	if err != nil {
		return nil, err
	}
	var out dashboard
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

func (c *client) APILogin(ctx context.Context, professionalID, sessionToken string) (*model.Projection, error) {
	body, err := json.Marshal(gateway.Request{ProfessionalID: professionalID, SessionToken: sessionToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/login", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api login: %w", err)
	}
	defer res.Body.Close()
	var out apiResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("api login rejected (%d): %s", res.StatusCode, out.Message)
	}
	return out.Data, nil
}

func (c *client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		var e errorResult
		_ = json.NewDecoder(res.Body).Decode(&e)
		if e.Error == "" {
			e.Error = res.Status
		}
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, e.Error)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
