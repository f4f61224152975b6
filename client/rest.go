package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"strings"
)

const (
	connectionHeader = "X-Connection-ID"
	nextCursorHeader = "X-Next-Cursor"
)

// SendMessage posts over HTTP. When the event channel is up its connection is named,
// so this device does not get its own message echoed back.
func (c *Client) SendMessage(ctx context.Context, chatID chat.ChatID, content string) (chat.Message, error) {
	var msg chat.Message
	body := map[string]string{"chatId": string(chatID), "content": content}
	_, err := c.do(ctx, http.MethodPost, "/message", body, &msg)
	return msg, err
}

func (c *Client) FetchChats(ctx context.Context) ([]chat.Chat, error) {
	var chats []chat.Chat
	_, err := c.do(ctx, http.MethodGet, "/chat", nil, &chats)
	return chats, err
}

// AccessChat returns the direct chat with userID, creating it if needed.
func (c *Client) AccessChat(ctx context.Context, userID chat.UserID) (chat.Chat, error) {
	var ch chat.Chat
	_, err := c.do(ctx, http.MethodPost, "/chat", map[string]string{"userId": string(userID)}, &ch)
	return ch, err
}

func (c *Client) CreateGroup(ctx context.Context, name string, users []chat.UserID) (chat.Chat, error) {
	var ch chat.Chat
	body := map[string]any{"name": name, "users": users}
	_, err := c.do(ctx, http.MethodPost, "/chat/group", body, &ch)
	return ch, err
}

// GetMessages returns one page of history, oldest first, and the cursor of the page before it.
// An empty cursor asks for the most recent page; a nil returned cursor means there is nothing older.
func (c *Client) GetMessages(ctx context.Context, chatID chat.ChatID, cursor string) ([]chat.Message, *string, error) {
	path := "/message/" + url.PathEscape(string(chatID))
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	var messages []chat.Message
	header, err := c.do(ctx, http.MethodGet, path, nil, &messages)
	if err != nil {
		return nil, nil, err
	}
	if next := header.Get(nextCursorHeader); next != "" {
		return messages, &next, nil
	}
	return messages, nil, nil
}

func (c *Client) MarkRead(ctx context.Context, chatID chat.ChatID, messageID chat.MessageID) (chat.Message, error) {
	var msg chat.Message
	path := "/message/" + messageID.String() + "/read"
	_, err := c.do(ctx, http.MethodPut, path, map[string]string{"chatId": string(chatID)}, &msg)
	return msg, err
}

// do sends one authenticated request. A non-2xx answer is turned back into the sentinel
// error named by its kind, so callers can match it with errors.Is.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.ServerURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := c.ConnectionID(); id != "" {
		req.Header.Set(connectionHeader, string(id))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload event.ErrorPayload
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if kind := errors.FromKind(payload.Kind); kind != nil {
			return resp.Header, fmt.Errorf("%w: %s", kind, payload.Message)
		}
		return resp.Header, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, payload.Message)
	}
	if out == nil {
		return resp.Header, nil
	}
	return resp.Header, json.NewDecoder(resp.Body).Decode(out)
}
