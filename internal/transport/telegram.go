package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	longPollSeconds = 25
	errorBackoff    = 3 * time.Second
)

// Telegram is a Transport over the Telegram Bot API using long polling.
type Telegram struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegram creates a Telegram transport. baseURL is normally
// "https://api.telegram.org"; tests point it at a local server.
func NewTelegram(baseURL, token string) *Telegram {
	return &Telegram{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type apiUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type apiChat struct {
	ID int64 `json:"id"`
}

type apiMessage struct {
	MessageID int64    `json:"message_id"`
	From      *apiUser `json:"from"`
	Chat      apiChat  `json:"chat"`
	Text      string   `json:"text"`
}

type apiCallbackQuery struct {
	ID      string      `json:"id"`
	From    apiUser     `json:"from"`
	Message *apiMessage `json:"message"`
	Data    string      `json:"data"`
}

type apiUpdate struct {
	UpdateID      int64             `json:"update_id"`
	Message       *apiMessage       `json:"message"`
	CallbackQuery *apiCallbackQuery `json:"callback_query"`
}

// Updates starts a long-poll loop and streams inbound events until ctx
// is canceled.
func (t *Telegram) Updates(ctx context.Context) <-chan Update {
	ch := make(chan Update)
	go func() {
		defer close(ch)
		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			updates, err := t.getUpdates(ctx, offset)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("poll failed", "error", err)
				select {
				case <-time.After(errorBackoff):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, raw := range updates {
				if raw.UpdateID >= offset {
					offset = raw.UpdateID + 1
				}
				update, ok := convertUpdate(raw)
				if !ok {
					continue
				}
				select {
				case ch <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func convertUpdate(raw apiUpdate) (Update, bool) {
	switch {
	case raw.CallbackQuery != nil:
		cb := raw.CallbackQuery
		update := Update{
			ID:           raw.UpdateID,
			FromID:       cb.From.ID,
			Username:     cb.From.Username,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.Message != nil {
			update.ChatID = cb.Message.Chat.ID
		}
		return update, true
	case raw.Message != nil && raw.Message.From != nil:
		msg := raw.Message
		return Update{
			ID:       raw.UpdateID,
			ChatID:   msg.Chat.ID,
			FromID:   msg.From.ID,
			Username: msg.From.Username,
			Text:     msg.Text,
		}, true
	default:
		return Update{}, false
	}
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64) ([]apiUpdate, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []apiUpdate
	if err := t.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Send delivers one message, attaching an inline keyboard when the
// message carries buttons.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"chat_id": msg.ChatID,
		"text":    msg.Text,
	}
	if len(msg.Buttons) > 0 {
		keyboard := make([][]map[string]string, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			apiRow := make([]map[string]string, 0, len(row))
			for _, btn := range row {
				apiRow = append(apiRow, map[string]string{
					"text":          btn.Text,
					"callback_data": btn.CallbackData,
				})
			}
			keyboard = append(keyboard, apiRow)
		}
		payload["reply_markup"] = map[string]any{"inline_keyboard": keyboard}
	}
	return t.call(ctx, "sendMessage", payload, nil)
}

// AnswerCallback acknowledges a button press so the client stops its
// spinner.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return t.call(ctx, "answerCallbackQuery", payload, nil)
}

func (t *Telegram) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s: api error: %s", method, apiResp.Description)
	}
	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
