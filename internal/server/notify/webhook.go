package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/netx"
)

// WebhookNotifier posts Google-Chat compatible messages: a "text" line plus,
// when the alert has fields, a card with key/value widgets.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

type chatKeyValue struct {
	TopLabel string `json:"topLabel"`
	Content  string `json:"content"`
}

type chatWidget struct {
	KeyValue *chatKeyValue `json:"keyValue,omitempty"`
}

type chatSection struct {
	Widgets []chatWidget `json:"widgets"`
}

type chatHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

type chatCard struct {
	Header   chatHeader    `json:"header"`
	Sections []chatSection `json:"sections"`
}

type chatMessage struct {
	Text  string     `json:"text"`
	Cards []chatCard `json:"cards,omitempty"`
}

func buildChatMessage(a Alert) chatMessage {
	msg := chatMessage{Text: a.Summary()}
	if len(a.Fields) == 0 {
		return msg
	}
	widgets := make([]chatWidget, 0, len(a.Fields))
	for _, f := range a.Fields {
		widgets = append(widgets, chatWidget{KeyValue: &chatKeyValue{TopLabel: f.Label, Content: f.Value}})
	}
	msg.Cards = []chatCard{{
		Header:   chatHeader{Title: a.Title, Subtitle: string(a.Priority)},
		Sections: []chatSection{{Widgets: widgets}},
	}}
	return msg
}

func (w *WebhookNotifier) SendAlert(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(buildChatMessage(a))
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}
	if err := netx.PostJSON(ctx, w.client, w.url, payload); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
