package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

var errNoTokens = errors.New("fcm: no tokens supplied")

// FCMProvider sends notifications via Firebase Cloud Messaging.
type FCMProvider struct {
	serverKey string
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
}

func NewFCMProvider(serverKey, endpoint string, timeout time.Duration, logger *slog.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMProvider{
		serverKey: serverKey,
		endpoint:  endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

func (p *FCMProvider) Send(ctx context.Context, payload *PushPayload) ([]models.PushResult, error) {
	regIDs := make([]string, 0, len(payload.Tokens))
	for _, token := range payload.Tokens {
		if token != "" {
			regIDs = append(regIDs, token)
		}
	}
	if len(regIDs) == 0 {
		return nil, errNoTokens
	}

	reqMap := map[string]interface{}{
		"registration_ids": regIDs,
		"notification": map[string]string{
			"title": payload.Title,
			"body":  payload.Body,
		},
	}
	if payload.Priority == models.PriorityHigh {
		reqMap["priority"] = "high"
	}
	if len(payload.Data) > 0 {
		reqMap["data"] = payload.Data
	}

	body, err := json.Marshal(reqMap)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fcm: received status %d", resp.StatusCode)
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return nil, fmt.Errorf("fcm: decode response: %w", err)
	}
	if len(fcmResp.Results) != len(regIDs) {
		p.logger.Warn("fcm result count mismatch",
			slog.Int("tokens", len(regIDs)),
			slog.Int("results", len(fcmResp.Results)))
	}

	results := make([]models.PushResult, 0, len(regIDs))
	for idx, token := range regIDs {
		res := models.PushResult{Token: token, Provider: p.Name()}
		if idx < len(fcmResp.Results) {
			res.MessageID = fcmResp.Results[idx].MessageID
			res.ErrorCode = errorCode(fcmResp.Results[idx].Error)
		} else {
			res.ErrorCode = "messaging/missing-result"
		}
		results = append(results, res)
	}
	return results, nil
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// errorCode maps a legacy FCM error string to the messaging/* code space.
func errorCode(fcmErr string) string {
	switch fcmErr {
	case "":
		return ""
	case "InvalidRegistration", "MissingRegistration":
		return models.ErrCodeInvalidToken
	case "NotRegistered":
		return models.ErrCodeTokenNotRegistered
	default:
		return "messaging/" + kebab(fcmErr)
	}
}

func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
