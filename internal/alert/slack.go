package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackChannel posts each alert to an incoming webhook as a single colored
// attachment. An empty webhook URL disables the channel.
type SlackChannel struct {
	webhookURL string
	footer     string
	client     *http.Client
}

func NewSlackChannel(webhookURL, footer string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		footer:     footer,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color   string       `json:"color"`
	Pretext string       `json:"pretext"`
	Text    string       `json:"text"`
	Fields  []slackField `json:"fields,omitempty"`
	Footer  string       `json:"footer,omitempty"`
	TS      int64        `json:"ts"`
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

func slackColor(level Level) string {
	switch level {
	case Warning:
		return "#ffcc00"
	case Error:
		return "#ff0000"
	case Critical:
		return "#8b0000"
	default:
		return "#36a64f"
	}
}

func (s *SlackChannel) Send(ctx context.Context, alert Payload) error {
	if s.webhookURL == "" {
		return nil
	}

	fields := make([]slackField, 0, len(alert.Fields))
	for k, v := range alert.Fields {
		fields = append(fields, slackField{Title: k, Value: v, Short: true})
	}

	body, err := json.Marshal(slackMessage{
		Attachments: []slackAttachment{{
			Color:   slackColor(alert.Level),
			Pretext: fmt.Sprintf("[%s] %s", alert.Level, alert.Title),
			Text:    alert.Message,
			Fields:  fields,
			Footer:  s.footer,
			TS:      alert.Timestamp.Unix(),
		}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
