package camunda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amekhanov/bpmbridge/internal/domain"
)

// engineTimeLayout — формат времени в REST API движка.
const engineTimeLayout = "2006-01-02T15:04:05.000-0700"

// fetchGrace — запас поверх long-poll таймаута до обрыва запроса.
const fetchGrace = 10 * time.Second

// Client — REST-клиент external task API движка.
//
// Реализует протокол fetch-and-lock: long-poll захват задач под lease,
// продление lease и отчёт о завершении/ошибке.
type Client struct {
	baseURL  string
	workerID string

	// Авторизация: token имеет приоритет над basic.
	user     string
	password string
	token    string

	http   *http.Client
	logger *slog.Logger
}

// Config — конфигурация клиента движка.
type Config struct {
	// BaseURL — базовый URL REST API (включая /engine-rest).
	BaseURL string

	// WorkerID — идентификатор воркера, владеющего lock'ами.
	WorkerID string

	// User, Password — basic-авторизация (опционально).
	User     string
	Password string

	// Token — bearer-токен (опционально, приоритетнее basic).
	Token string

	// HTTPClient — опциональный транспорт. Таймаут у него должен быть
	// нулевым: long-poll живёт дольше обычного запроса, дедлайны
	// задаются через context.
	HTTPClient *http.Client

	// Logger
	Logger *slog.Logger
}

// NewClient создаёт клиент движка.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		workerID: cfg.WorkerID,
		user:     cfg.User,
		password: cfg.Password,
		token:    cfg.Token,
		http:     httpClient,
		logger:   logger,
	}
}

// --- Wire-типы движка ---

type topicRequest struct {
	TopicName    string `json:"topicName"`
	LockDuration int64  `json:"lockDuration"`
}

type fetchAndLockRequest struct {
	WorkerID             string         `json:"workerId"`
	MaxTasks             int            `json:"maxTasks"`
	AsyncResponseTimeout int64          `json:"asyncResponseTimeout"`
	UsePriority          bool           `json:"usePriority"`
	Topics               []topicRequest `json:"topics"`
}

type externalTaskResponse struct {
	ID                 string           `json:"id"`
	TopicName          string           `json:"topicName"`
	ProcessInstanceID  string           `json:"processInstanceId"`
	BusinessKey        string           `json:"businessKey"`
	Variables          domain.Variables `json:"variables"`
	Retries            *int             `json:"retries"`
	LockExpirationTime string           `json:"lockExpirationTime"`
	WorkerID           string           `json:"workerId"`
}

type completeRequest struct {
	WorkerID  string           `json:"workerId"`
	Variables domain.Variables `json:"variables,omitempty"`
}

type failureRequest struct {
	WorkerID     string `json:"workerId"`
	ErrorMessage string `json:"errorMessage"`
	Retries      int    `json:"retries"`
	RetryTimeout int64  `json:"retryTimeout"`
}

type bpmnErrorRequest struct {
	WorkerID     string `json:"workerId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type extendLockRequest struct {
	WorkerID    string `json:"workerId"`
	NewDuration int64  `json:"newDuration"`
}

// FetchAndLock захватывает до maxTasks задач по указанным topic'ам.
//
// Блокируется long-poll'ом до fetchTimeout, если задач нет. Каждая
// возвращённая задача эксклюзивно заблокирована за workerId на
// lockDuration.
func (c *Client) FetchAndLock(ctx context.Context, topics []string, maxTasks int, lockDuration, fetchTimeout time.Duration) ([]domain.ExternalTask, error) {
	reqTopics := make([]topicRequest, 0, len(topics))
	for _, topic := range topics {
		reqTopics = append(reqTopics, topicRequest{
			TopicName:    topic,
			LockDuration: lockDuration.Milliseconds(),
		})
	}

	body := fetchAndLockRequest{
		WorkerID:             c.workerID,
		MaxTasks:             maxTasks,
		AsyncResponseTimeout: fetchTimeout.Milliseconds(),
		UsePriority:          true,
		Topics:               reqTopics,
	}

	// Обрыв запроса — только если движок молчит дольше long-poll + запас.
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout+fetchGrace)
	defer cancel()

	var resp []externalTaskResponse
	status, err := c.do(ctx, http.MethodPost, "/external-task/fetchAndLock", body, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.statusError("fetchAndLock", status)
	}

	tasks := make([]domain.ExternalTask, 0, len(resp))
	for _, r := range resp {
		task := domain.ExternalTask{
			ID:                r.ID,
			Topic:             r.TopicName,
			ProcessInstanceID: r.ProcessInstanceID,
			BusinessKey:       r.BusinessKey,
			Variables:         r.Variables,
			Retries:           r.Retries,
			WorkerID:          r.WorkerID,
		}

		if r.LockExpirationTime != "" {
			exp, err := time.Parse(engineTimeLayout, r.LockExpirationTime)
			if err != nil {
				c.logger.Warn("unparseable lockExpirationTime",
					"task_id", r.ID,
					"value", r.LockExpirationTime,
				)
			} else {
				task.LockExpiration = exp
			}
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Complete отчитывается об успешном выполнении задачи.
//
// ErrTaskNotFound — задачу уже завершил другой воркер или она истекла.
func (c *Client) Complete(ctx context.Context, taskID string, variables domain.Variables) error {
	body := completeRequest{
		WorkerID:  c.workerID,
		Variables: variables,
	}

	status, err := c.do(ctx, http.MethodPost, "/external-task/"+taskID+"/complete", body, nil)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("complete %s: %w", taskID, ErrTaskNotFound)
	default:
		return c.statusError("complete "+taskID, status)
	}
}

// Fail отчитывается о retryable-ошибке.
//
// Когда retries достигает нуля, движок создаёт инцидент вместо
// повторного предложения задачи.
func (c *Client) Fail(ctx context.Context, taskID, errorMessage string, retries int, retryTimeout time.Duration) error {
	body := failureRequest{
		WorkerID:     c.workerID,
		ErrorMessage: errorMessage,
		Retries:      retries,
		RetryTimeout: retryTimeout.Milliseconds(),
	}

	status, err := c.do(ctx, http.MethodPost, "/external-task/"+taskID+"/failure", body, nil)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("fail %s: %w", taskID, ErrTaskNotFound)
	default:
		return c.statusError("fail "+taskID, status)
	}
}

// ReportBPMNError сигнализирует бизнес-исключение.
// Процесс уходит по error boundary, retry не выполняется.
func (c *Client) ReportBPMNError(ctx context.Context, taskID, errorCode, errorMessage string) error {
	body := bpmnErrorRequest{
		WorkerID:     c.workerID,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	}

	status, err := c.do(ctx, http.MethodPost, "/external-task/"+taskID+"/bpmnError", body, nil)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("bpmnError %s: %w", taskID, ErrTaskNotFound)
	default:
		return c.statusError("bpmnError "+taskID, status)
	}
}

// ExtendLock продлевает lease задачи на newDuration от текущего момента.
//
// Идемпотентен. ErrLockExpired — lease уже истёк, задача переназначена:
// вызывающий обязан бросить задачу, а не повторять completion.
func (c *Client) ExtendLock(ctx context.Context, taskID string, newDuration time.Duration) error {
	body := extendLockRequest{
		WorkerID:    c.workerID,
		NewDuration: newDuration.Milliseconds(),
	}

	status, err := c.do(ctx, http.MethodPost, "/external-task/"+taskID+"/extendLock", body, nil)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound, status == http.StatusBadRequest:
		// Движок отвечает 404, если задача ушла, и 400, если lock
		// уже не принадлежит этому воркеру.
		return fmt.Errorf("extendLock %s: %w", taskID, ErrLockExpired)
	default:
		return c.statusError("extendLock "+taskID, status)
	}
}

// WorkerID возвращает идентификатор воркера.
func (c *Client) WorkerID() string {
	return c.workerID
}

// do выполняет запрос к движку и декодирует ответ в out (если не nil).
// Сетевые ошибки заворачиваются в ErrEngineUnavailable.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	// Тело ошибки дочитываем, чтобы соединение вернулось в пул.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// statusError классифицирует неожиданный HTTP-статус.
func (c *Client) statusError(op string, status int) error {
	if status >= 500 {
		return fmt.Errorf("%s: engine returned %d: %w", op, status, ErrEngineUnavailable)
	}
	return fmt.Errorf("%s: engine returned unexpected status %d", op, status)
}
