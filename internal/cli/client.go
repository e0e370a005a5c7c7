package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// QueueInfoResponse — снимок очереди из API.
type QueueInfoResponse struct {
	Queue     string `json:"queue"`
	Messages  int    `json:"messages"`
	Consumers int    `json:"consumers"`
	Source    string `json:"source"`
}

// SystemStatusResponse — статус целевой системы из API.
type SystemStatusResponse struct {
	System      string `json:"system"`
	Queue       string `json:"queue"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	CheckedAt   string `json:"checked_at"`
}

// PrefixRuleResponse — префиксное правило из API.
type PrefixRuleResponse struct {
	Prefix string `json:"prefix"`
	System string `json:"system"`
}

// RouteResponse — маршрут системы из API.
type RouteResponse struct {
	System string `json:"system"`
	Queue  string `json:"queue"`
}

// RoutingTableResponse — таблица маршрутизации из API.
type RoutingTableResponse struct {
	DefaultSystem string               `json:"default_system"`
	ExactRules    map[string]string    `json:"exact_rules"`
	PrefixRules   []PrefixRuleResponse `json:"prefix_rules"`
	Queues        map[string]string    `json:"queues"`
	Routes        []RouteResponse      `json:"routes"`
}

// ResolveResponse — результат разрешения topic'а из API.
type ResolveResponse struct {
	Topic  string `json:"topic"`
	System string `json:"system"`
	Queue  string `json:"queue"`
	Key    string `json:"routing_key"`
}

// JournalEntryResponse — запись журнала из API.
type JournalEntryResponse struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	Topic     string `json:"topic"`
	System    string `json:"system"`
	Queue     string `json:"queue"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
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

// Client — HTTP-клиент для bpmbridge API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListQueues возвращает снимки всех очередей моста.
func (c *Client) ListQueues() ([]QueueInfoResponse, error) {
	var queues []QueueInfoResponse
	err := c.list("/api/v1/queues", nil, &queues)
	return queues, err
}

// UnroutedQueue возвращает снимок очереди alternate exchange.
func (c *Client) UnroutedQueue() (*QueueInfoResponse, error) {
	var queue QueueInfoResponse
	err := c.get("/api/v1/queues/unrouted", &queue)
	return &queue, err
}

// RoutingTable возвращает действующую таблицу маршрутизации.
func (c *Client) RoutingTable() (*RoutingTableResponse, error) {
	var table RoutingTableResponse
	err := c.get("/api/v1/routing", &table)
	return &table, err
}

// ResolveTopic показывает маршрут для topic'а.
func (c *Client) ResolveTopic(topic string) (*ResolveResponse, error) {
	params := url.Values{}
	params.Set("topic", topic)

	var resolve ResolveResponse
	err := c.get("/api/v1/routing/resolve?"+params.Encode(), &resolve)
	return &resolve, err
}

// ListSystems возвращает статусы целевых систем.
func (c *Client) ListSystems() ([]SystemStatusResponse, error) {
	var systems []SystemStatusResponse
	err := c.list("/api/v1/systems", nil, &systems)
	return systems, err
}

// RecentJournal возвращает последние записи журнала.
func (c *Client) RecentJournal(limit int) ([]JournalEntryResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var entries []JournalEntryResponse
	err := c.list("/api/v1/journal", params, &entries)
	return entries, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(path)
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

func (c *Client) do(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
