package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/eroom/internal/notification/domain"
)

const defaultAligoEndpoint = "https://apis.aligo.in/send/"

var ErrInvalidConfig = errors.New("sms_provider_invalid_config")

type AligoConfig struct {
	APIKey   string
	UserID   string
	Sender   string
	Endpoint string
	TestMode bool
}

// AligoProvider posts messages to the Aligo HTTP API. Bodies over 90 EUC-KR
// bytes go out as LMS.
type AligoProvider struct {
	cfg    AligoConfig
	client *http.Client
}

func NewAligo(cfg AligoConfig) *AligoProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.Sender = strings.TrimSpace(cfg.Sender)
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultAligoEndpoint
	}
	return &AligoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *AligoProvider) Name() string { return "aligo" }

// aligoCode accepts result_code as either a JSON string or number.
type aligoCode string

func (c *aligoCode) UnmarshalJSON(data []byte) error {
	*c = aligoCode(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	return nil
}

type aligoResponse struct {
	ResultCode aligoCode `json:"result_code"`
	Message    string    `json:"message"`
	MsgID      aligoCode `json:"msg_id"`
}

func (p *AligoProvider) Send(ctx context.Context, to, content string) (string, error) {
	if p.cfg.APIKey == "" || p.cfg.UserID == "" || p.cfg.Sender == "" {
		return "", ErrInvalidConfig
	}

	_, kind := domain.MeasureContent(content)
	values := url.Values{}
	values.Set("key", p.cfg.APIKey)
	values.Set("user_id", p.cfg.UserID)
	values.Set("sender", p.cfg.Sender)
	values.Set("receiver", to)
	values.Set("msg", content)
	values.Set("msg_type", string(kind))
	if p.cfg.TestMode {
		values.Set("testmode_yn", "Y")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("aligo request failed: http %d", resp.StatusCode)
	}

	var body aligoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("aligo response invalid: %w", err)
	}
	if body.ResultCode != "1" {
		message := strings.TrimSpace(body.Message)
		if message == "" {
			message = "unknown error"
		}
		return "", fmt.Errorf("aligo api error: %s - %s", body.ResultCode, message)
	}
	return string(body.MsgID), nil
}
