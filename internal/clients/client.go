package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Grantflow/internal/config"
)

const maxErrorBody = 200

// Client — HTTP-клиент одного именованного инстанса backend'а.
//
// Собирает base URL, аутентификацию, таймауты и TLS-политику инстанса.
// Потокобезопасен; пул соединений живёт внутри transport.
type Client struct {
	instance  string
	baseURL   *url.URL
	http      *http.Client
	transport *http.Transport
	headers   http.Header

	bearerToken string
	username    string
	password    string
}

// Option настраивает Client.
type Option func(*Client)

// WithHeader добавляет заголовок ко всем запросам клиента.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// NewClient создаёт клиент по конфигурации инстанса.
//
// Если заданы и bearer token, и username/password — используется bearer.
func NewClient(inst config.Instance, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(inst.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", inst.BaseURL)
	}

	connTimeout := inst.ConnectionTimeout()
	readTimeout := inst.ReadTimeout()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	if inst.TrustAllCertificates {
		// Только для dev-стендов с самоподписанными сертификатами.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c := &Client{
		instance:    inst.Name,
		baseURL:     base,
		transport:   transport,
		http:        &http.Client{Transport: transport, Timeout: connTimeout + readTimeout},
		headers:     make(http.Header),
		bearerToken: inst.BearerToken,
		username:    inst.Username,
		password:    inst.Password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Instance возвращает имя инстанса.
func (c *Client) Instance() string {
	return c.instance
}

// BaseURL возвращает base URL инстанса.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CloseIdleConnections закрывает простаивающие соединения пула.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// GetJSON выполняет GET и декодирует JSON-ответ в out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// PostJSON выполняет POST с JSON body и декодирует ответ в out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do выполняет запрос к инстансу.
//
// Любая ошибка возвращается как *BackendError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	fail := func(status int, respBody string, err error) error {
		return &BackendError{
			Instance:   c.instance,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       respBody,
			Err:        err,
		}
	}

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(0, "", fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return fail(0, "", fmt.Errorf("%w: create request: %v", ErrBackendUnavailable, err))
	}

	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(0, "", fmt.Errorf("%w: read response: %v", ErrBackendUnavailable, err))
	}

	if resp.StatusCode >= 400 {
		return fail(resp.StatusCode, truncate(string(respBody), maxErrorBody), ErrBackendStatus)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fail(resp.StatusCode, truncate(string(respBody), maxErrorBody),
				fmt.Errorf("%w: decode response: %v", ErrBackendStatus, err))
		}
	}

	return nil
}

// authorize выставляет аутентификацию: bearer приоритетнее basic.
func (c *Client) authorize(req *http.Request) {
	switch {
	case c.bearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
