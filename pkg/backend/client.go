// Package backend provides a client for the hospital assistant REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/log"
)

// ErrUnreachable is returned when a request never got an HTTP response.
var ErrUnreachable = errors.New("backend unreachable")

// RequestError is a non-2xx response. Detail is the backend's `detail` text, verbatim.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string { return e.Detail }

// Client defines the backend operations the console consumes.
type Client interface {
	Ping(ctx context.Context) error
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatHistory(ctx context.Context, role string) ([]model.ChatHistoryRecord, error)
	Appointments(ctx context.Context, status string) ([]model.Appointment, error)
	AppointmentAction(ctx context.Context, req AppointmentActionRequest) (string, error)
	Statistics(ctx context.Context) (*model.Statistics, error)
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	UploadDocument(ctx context.Context, fileName string, content io.Reader) (string, error)
	Documents(ctx context.Context) ([]model.Document, error)
	ReloadDocuments(ctx context.Context) (string, error)
	SystemStatus(ctx context.Context) (*model.SystemStatus, error)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message     string `json:"message"`
	UserRole    string `json:"user_role"`
	UserID      string `json:"user_id,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ChatResponse is the subset of the /chat response the console uses.
type ChatResponse struct {
	Response             string `json:"response"`
	Timestamp            string `json:"timestamp"`
	IsAppointmentRequest bool   `json:"is_appointment_request"`
	AppointmentID        string `json:"appointment_id"`
}

// AppointmentActionRequest is the body of POST /admin/appointments/action.
type AppointmentActionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Action        string `json:"action"`
	AdminNotes    string `json:"admin_notes"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a backend client from config.
func NewClient(cfg config.BackendConfig) Client {
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP lets callers supply their own http.Client.
func NewClientWithHTTP(baseURL string, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// Ping probes GET / and only looks at the status code.
func (c *httpClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil, "", nil)
}

func (c *httpClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatHistory omits user_role entirely when role is empty.
func (c *httpClient) ChatHistory(ctx context.Context, role string) ([]model.ChatHistoryRecord, error) {
	q := url.Values{}
	if role != "" {
		q.Set("user_role", role)
	}
	var resp struct {
		History []model.ChatHistoryRecord `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/chat-history", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Appointments omits status entirely when it is empty.
func (c *httpClient) Appointments(ctx context.Context, status string) ([]model.Appointment, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var resp struct {
		Appointments []model.Appointment `json:"appointments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/appointments", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Appointments, nil
}

func (c *httpClient) AppointmentAction(ctx context.Context, req AppointmentActionRequest) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/admin/appointments/action", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *httpClient) Statistics(ctx context.Context) (*model.Statistics, error) {
	var resp model.Statistics
	if err := c.doJSON(ctx, http.MethodGet, "/admin/statistics", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Notifications(ctx context.Context) ([]model.Notification, error) {
	var resp struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/notifications", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkNotificationRead sends notification_id as a query parameter, which is
// how the backend declares it.
func (c *httpClient) MarkNotificationRead(ctx context.Context, notificationID string) error {
	q := url.Values{}
	q.Set("notification_id", notificationID)
	return c.doJSON(ctx, http.MethodPost, "/admin/notifications/mark-read", q, nil, nil)
}

// UploadDocument streams the multipart body through a pipe, so the PDF is never
// held in memory as a whole.
func (c *httpClient) UploadDocument(ctx context.Context, fileName string, content io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()

	writeErr := make(chan error, 1)
	go func() {
		err := writeMultipartFile(mw, fileName, content)
		_ = pw.CloseWithError(err)
		writeErr <- err
	}()

	var resp messageResponse
	err := c.do(ctx, http.MethodPost, "/upload-document", nil, pr, contentType, &resp)
	// 后端提前返回时解除写端阻塞。
	_ = pr.Close()
	if werr := <-writeErr; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return "", fmt.Errorf("failed to read upload content: %w", werr)
	}
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func writeMultipartFile(mw *multipart.Writer, fileName string, content io.Reader) error {
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

func (c *httpClient) Documents(ctx context.Context) ([]model.Document, error) {
	var resp struct {
		Documents []model.Document `json:"documents"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Documents {
		if resp.Documents[i].Status == "" {
			resp.Documents[i].Status = "stored"
		}
	}
	return resp.Documents, nil
}

func (c *httpClient) ReloadDocuments(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/reload-documents", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *httpClient) SystemStatus(ctx context.Context) (*model.SystemStatus, error) {
	var resp model.SystemStatus
	if err := c.doJSON(ctx, http.MethodGet, "/system/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	resp.ServicesInitialized = resp.FirebaseInitialized && resp.FirestoreEnabled
	return &resp, nil
}

func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if in == nil {
		return c.do(ctx, method, path, query, nil, "", out)
	}
	reqBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}
	return c.do(ctx, method, path, query, bytes.NewReader(reqBytes), "application/json", out)
}

func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnw("backend request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()
	log.Debugf("[backend] %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &RequestError{StatusCode: resp.StatusCode, Detail: extractDetail(resp.StatusCode, bodyBytes)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// extractDetail pulls `detail` out of an error body. String details are used
// as-is; structured ones (FastAPI validation lists) are returned as raw JSON.
func extractDetail(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
