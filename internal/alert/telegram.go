package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"aqua-guard/internal/model"

	"github.com/sirupsen/logrus"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig configures the Telegram notifier
type TelegramConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BotToken        string `yaml:"bot_token"`
	ChatID          string `yaml:"chat_id"`
	ParseMode       string `yaml:"parse_mode"`
	MessageTemplate string `yaml:"message_template"`
	// APIBase overrides the Bot API host, mainly for tests
	APIBase string `yaml:"api_base,omitempty"`
}

type TelegramNotifier struct {
	cfg        TelegramConfig
	template   *template.Template
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logrus.Logger
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func NewTelegramNotifier(cfg TelegramConfig, logger *logrus.Logger) *TelegramNotifier {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultTelegramAPI
	}
	tn := &TelegramNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     logger,
	}

	if strings.TrimSpace(cfg.MessageTemplate) != "" {
		funcMap := template.FuncMap{
			"formatTime": func(t time.Time, layout string) string {
				return t.Format(layout)
			},
		}
		tmpl, err := template.New("telegram_message").Funcs(funcMap).Parse(cfg.MessageTemplate)
		if err != nil {
			logger.Warnf("Failed to parse Telegram message template: %v, using default format", err)
		} else {
			tn.template = tmpl
		}
	}

	return tn
}

func (tn *TelegramNotifier) IsEnabled() bool {
	return tn.cfg.Enabled
}

// SendAlert posts the alert to the configured chat, retrying with linear backoff
func (tn *TelegramNotifier) SendAlert(alert model.Alert) error {
	if !tn.cfg.Enabled {
		tn.logger.Debug("Telegram notifier is disabled, skipping alert")
		return nil
	}

	text := tn.format(alert)

	var lastErr error
	for i := 0; i < tn.maxRetries; i++ {
		if lastErr = tn.send(context.Background(), text); lastErr == nil {
			return nil
		}

		tn.logger.Warnf("Failed to send alert (attempt %d/%d): %v", i+1, tn.maxRetries, lastErr)
		if i < tn.maxRetries-1 {
			time.Sleep(time.Duration(i+1) * tn.backoff)
		}
	}

	return fmt.Errorf("failed to send alert after %d attempts: %w", tn.maxRetries, lastErr)
}

func (tn *TelegramNotifier) format(alert model.Alert) string {
	if tn.template != nil {
		var buf bytes.Buffer
		err := tn.template.Execute(&buf, alert)
		if err == nil {
			return buf.String()
		}
		tn.logger.Warnf("Failed to execute message template: %v, using default format", err)
	}

	component := alert.Component
	if component == "" {
		component = "operator"
	}

	return fmt.Sprintf("ALERT FIRING: Water Network Anomaly\n\n"+
		"alert_name: %s\n"+
		"time: %s\n"+
		"severity: %s\n"+
		"component: %s\n"+
		"value: %.2f\n"+
		"description: %s",
		alert.Type,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
		alert.Severity,
		component,
		alert.Value,
		alert.Message)
}

func (tn *TelegramNotifier) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(tn.cfg.APIBase, "/"), tn.cfg.BotToken)

	// Markdown modes choke on unescaped sensor names, so only HTML is passed through
	parseMode := ""
	if tn.cfg.ParseMode != "" && tn.cfg.ParseMode != "Markdown" && tn.cfg.ParseMode != "MarkdownV2" {
		parseMode = tn.cfg.ParseMode
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    tn.cfg.ChatID,
		Text:      text,
		ParseMode: parseMode,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram API error: %s", tr.Description)
	}

	tn.logger.Infof("Alert sent to Telegram successfully")
	return nil
}

// SendTestMessage verifies the bot token and chat id
func (tn *TelegramNotifier) SendTestMessage() error {
	if !tn.cfg.Enabled {
		return fmt.Errorf("telegram notifier is disabled")
	}
	return tn.send(context.Background(), "Test Message\n\nWater network anomaly detector is working correctly!")
}
