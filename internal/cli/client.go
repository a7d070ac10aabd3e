package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StatusResponse — статус заявки из API.
type StatusResponse struct {
	RequestID    string `json:"requestId"`
	Project      string `json:"project"`
	User         string `json:"user"`
	Environment  string `json:"environment"`
	Status       string `json:"status"`
	Completed    bool   `json:"completed"`
	Successful   bool   `json:"successful"`
	Message      string `json:"message"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

// InitiationResponse — запущенная заявка из API.
type InitiationResponse struct {
	RequestID string          `json:"requestId"`
	JobID     string          `json:"jobId"`
	Reference string          `json:"reference"`
	ExpiresAt string          `json:"expiresAt"`
	Status    *StatusResponse `json:"status"`
}

// CommandResponse — зарегистрированная команда из API.
type CommandResponse struct {
	Service string `json:"service"`
	Command string `json:"command"`
}

// CommandResult — результат выполнения команды из API.
type CommandResult struct {
	Success         bool            `json:"success"`
	Data            json.RawMessage `json:"data,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	ErrorCode       string          `json:"errorCode,omitempty"`
	ServiceName     string          `json:"serviceName"`
	CommandName     string          `json:"commandName"`
	StartTime       string          `json:"startTime"`
	EndTime         string          `json:"endTime"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// FamilyResponse — инстансы семейства из API.
type FamilyResponse struct {
	Family          string   `json:"family"`
	DefaultInstance string   `json:"defaultInstance,omitempty"`
	Instances       []string `json:"instances"`
}

// --- Request types ---

// AddMemberRequest — заявка на добавление пользователя.
type AddMemberRequest struct {
	ProjectKey  string `json:"projectKey"`
	User        string `json:"user"`
	Role        string `json:"role"`
	Environment string `json:"environment,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Initiator   string `json:"initiator,omitempty"`
}

// CommandContext — параметры вызова команды.
type CommandContext struct {
	Instance      string         `json:"instance,omitempty"`
	TimeoutMs     int64          `json:"timeoutMs,omitempty"`
	RetryAttempts *int           `json:"retryAttempts,omitempty"`
	Async         bool           `json:"async,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type executeCommandRequest struct {
	Request json.RawMessage `json:"request,omitempty"`
	Context *CommandContext `json:"context,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Grantflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// --- Memberships ---

// AddMember запускает заявку.
func (c *Client) AddMember(req AddMemberRequest) (*InitiationResponse, error) {
	var started InitiationResponse
	err := c.post("/api/v1/memberships", req, &started)
	return &started, err
}

// GetStatus согласует статус заявки.
func (c *Client) GetStatus(requestID string) (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/memberships/"+url.PathEscape(requestID), &status)
	return &status, err
}

// Verify проверяет, что request id выпущен для project и user.
func (c *Client) Verify(requestID, project, user string) (bool, error) {
	body := map[string]string{"project": project, "user": user}
	var resp struct {
		Valid bool `json:"valid"`
	}
	err := c.post("/api/v1/memberships/"+url.PathEscape(requestID)+"/verify", body, &resp)
	return resp.Valid, err
}

// --- Commands ---

// ListCommands возвращает зарегистрированные команды.
func (c *Client) ListCommands() ([]CommandResponse, error) {
	var commands []CommandResponse
	err := c.list("/api/v1/commands", nil, &commands)
	return commands, err
}

// ExecuteCommand вызывает команду.
// Неуспешный Result возвращается без ошибки: ошибка только для сбоя транспорта.
func (c *Client) ExecuteCommand(service, name string, request json.RawMessage, cc *CommandContext) (*CommandResult, error) {
	path := "/api/v1/commands/" + url.PathEscape(service) + "/" + url.PathEscape(name)
	resp, err := c.do(http.MethodPost, path, executeCommandRequest{Request: request, Context: cc})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var dr dataResponse
	if err := json.Unmarshal(raw, &dr); err != nil || len(dr.Data) == 0 {
		return nil, apiError(resp.StatusCode, raw)
	}

	var result CommandResult
	if err := json.Unmarshal(dr.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

// --- Instances ---

// ListInstances возвращает инстансы по семействам.
func (c *Client) ListInstances() ([]FamilyResponse, error) {
	var families []FamilyResponse
	err := c.list("/api/v1/instances", nil, &families)
	return families, err
}

// ClearCache выбрасывает закешированные клиенты семейства.
func (c *Client) ClearCache(family string) error {
	return c.doData(http.MethodPost, "/api/v1/instances/"+url.PathEscape(family)+"/cache/clear", nil, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	return apiError(resp.StatusCode, raw)
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func apiError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return &APIError{StatusCode: status}
	}
	return &APIError{StatusCode: status, Code: er.Error.Code, Message: er.Error.Message}
}
