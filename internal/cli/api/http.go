package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// Client — HTTP-клиент API управления ссылками.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient создаёт клиента для сервера baseURL (схема обязательна).
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

// StatusError — ответ сервера с неуспешным статусом.
type StatusError struct {
	Code    int
	Message string
	// RemainingAttempts — остаток попыток ввода passcode (только для 401 манифеста).
	RemainingAttempts *int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server status %d: %s", e.Code, e.Message)
}

// PostJSON отправляет JSON POST и декодирует ответ в out (если out != nil).
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

// GetJSON выполняет GET и декодирует ответ в out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// Delete выполняет DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

// GetRaw выполняет GET по абсолютному URL и возвращает тело как есть.
func (c *Client) GetRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// PostJSONURL отправляет JSON POST по абсолютному URL.
func (c *Client) PostJSONURL(ctx context.Context, url string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.send(req)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// PostMultipart отправляет файл частью file и необязательный JSON частью options.
func (c *Client) PostMultipart(ctx context.Context, path, fileName, contentType string, data []byte, options any, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}

	if options != nil {
		ob, err := json.Marshal(options)
		if err != nil {
			return err
		}
		if err := mw.WriteField("options", string(ob)); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	respBody, err := c.send(req)
	if err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// statusError разбирает тело ошибки: поле error и, если есть, remainingAttempts.
// Не-JSON тело становится сообщением целиком.
func statusError(code int, body []byte) *StatusError {
	var e struct {
		Error             string `json:"error"`
		RemainingAttempts *int   `json:"remainingAttempts"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return &StatusError{Code: code, Message: e.Error, RemainingAttempts: e.RemainingAttempts}
	}
	return &StatusError{Code: code, Message: strings.TrimSpace(string(body))}
}
