// Package api es el cliente HTTP del servicio IAM bajo prueba.
//
// Cada llamada pasa por invoke (presupuesto de tiempo) y lleva el header de
// dispositivo. El cliente no interpreta status: eso lo hacen Expect y los callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/iamprobe/internal/invoke"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"golang.org/x/time/rate"
)

const (
	DeviceIDHeader  = "X-Device-ID"
	DefaultDeviceID = "Test-Device-001"
	DefaultBaseURL  = "http://localhost:8080"
	DefaultBasePath = "api/v1"
)

type Options struct {
	BaseURL  string
	BasePath string
	DeviceID string
	Timeout  time.Duration
	HTTP     *http.Client
	// Limiter opcional; nil = sin pacing.
	Limiter *rate.Limiter
}

type Client struct {
	base     string
	deviceID string
	http     *http.Client
	inv      *invoke.Invoker
	limiter  *rate.Limiter
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	basePath := strings.Trim(opts.BasePath, "/")
	if opts.BasePath == "" {
		basePath = DefaultBasePath
	}
	base := baseURL
	if basePath != "" {
		base += "/" + basePath
	}
	dev := opts.DeviceID
	if dev == "" {
		dev = DefaultDeviceID
	}
	hc := opts.HTTP
	if hc == nil {
		// sin timeout propio: el presupuesto lo pone el invoker
		hc = &http.Client{}
	}
	return &Client{
		base:     base,
		deviceID: dev,
		http:     hc,
		inv:      invoke.New(opts.Timeout),
		limiter:  opts.Limiter,
	}
}

// BaseURL retorna la URL base ya combinada con el base path.
func (c *Client) BaseURL() string { return c.base }

// Execute corre req bajo el presupuesto del invoker.
// Solo falla por transporte/timeout; cualquier status HTTP es una Response válida.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	return invoke.Do(ctx, c.inv, func(ctx context.Context) (*Response, error) {
		return c.do(ctx, req)
	})
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.base + "/" + strings.TrimLeft(req.path, "/")
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("api: encode body for %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set(DeviceIDHeader, c.deviceID)
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Debug("iam call",
		logger.Component("api"),
		logger.Method(req.method),
		logger.Path(req.path),
		logger.Status(hresp.StatusCode),
		logger.Duration(time.Since(start)),
	)

	return &Response{
		Status: hresp.StatusCode,
		Header: hresp.Header,
		body:   raw,
		method: req.method,
		path:   req.path,
	}, nil
}

// send es el atajo usado por los endpoints tipados.
func (c *Client) send(ctx context.Context, method, path, token string, query map[string]string, body any) (*Response, error) {
	req := NewRequest(method, path).WithBearer(token)
	for k, v := range query {
		req = req.WithQuery(k, v)
	}
	if body != nil {
		req = req.WithBody(body)
	}
	return c.Execute(ctx, req)
}
