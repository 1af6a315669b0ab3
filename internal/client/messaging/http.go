package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

// HTTPClient implements API against the /api/v1/messages endpoints.
type HTTPClient struct {
	BaseURL     string
	Client      *http.Client
	Credentials CredentialStore
}

func (c *HTTPClient) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Messages(ctx context.Context, conversationID int64) ([]Message, error) {
	var out []Message
	path := fmt.Sprintf("/api/v1/messages/%d/messages", conversationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateConversation(ctx context.Context, listingID, sellerID int64) (Conversation, error) {
	payload := map[string]int64{"listing_id": listingID, "seller_id": sellerID}
	var out Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/messages/conversations", payload, &out); err != nil {
		return Conversation{}, err
	}
	return out, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, conversationID int64, content, kind string) (Message, error) {
	payload := map[string]any{"conversation_id": conversationID, "content": content, "message_type": kind}
	var out Message
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/messages/send", payload, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (c *HTTPClient) SendImageMessage(ctx context.Context, conversationID int64, content string, images []Attachment) (Message, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("conversation_id", strconv.FormatInt(conversationID, 10)); err != nil {
		return Message{}, err
	}
	if err := writer.WriteField("content", content); err != nil {
		return Message{}, err
	}
	for _, img := range images {
		part, err := writer.CreateFormFile("images", img.Name)
		if err != nil {
			return Message{}, err
		}
		if _, err := part.Write(img.Data); err != nil {
			return Message{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Message{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/messages/send-image", body)
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out Message
	if err := c.execute(req, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteConversation(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/v1/messages/%d", conversationID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/messages/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *HTTPClient) Templates(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/messages/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.execute(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.Credentials != nil {
		if token := c.Credentials.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPClient) execute(req *http.Request, out any) error {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(snippet, &payload); err == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

var _ API = (*HTTPClient)(nil)
