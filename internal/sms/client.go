// Package sms sends text messages through the Naver Cloud SENS v2 API.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/config"
	"github.com/enroll/queue-server-go/internal/util"
)

const (
	headerTimestamp = "x-ncp-apigw-timestamp"
	headerAccessKey = "x-ncp-iam-access-key"
	headerSignature = "x-ncp-apigw-signature-v2"

	maxErrorBody = 4 << 10
)

type Message struct {
	To      string
	From    string
	Content string
}

type recipient struct {
	To string `json:"to"`
}

type sendRequest struct {
	Type     string      `json:"type"`
	From     string      `json:"from"`
	Content  string      `json:"content"`
	Messages []recipient `json:"messages"`
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sens responded with status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	cfg    config.SMSConfig
	client *http.Client
	now    func() time.Time
}

func NewClient(cfg config.SMSConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: config.SMSSendTimeout,
		},
		now: time.Now,
	}
}

// Sender returns the configured originating number.
func (c *Client) Sender() string {
	return c.cfg.SenderPhone
}

func (c *Client) messagesPath() string {
	return "/sms/v2/services/" + c.cfg.ServiceID + "/messages"
}

// Sign builds the v2 signature over "METHOD path\ntimestamp\naccessKey".
func Sign(secretKey, method, path, timestamp, accessKey string) string {
	return util.HmacSHA256Base64(secretKey, method+" "+path+"\n"+timestamp+"\n"+accessKey)
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		Type:     "SMS",
		From:     msg.From,
		Content:  msg.Content,
		Messages: []recipient{{To: msg.To}},
	})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	path := c.messagesPath()
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerAccessKey, c.cfg.AccessKey)
	req.Header.Set(headerSignature, Sign(c.cfg.SecretKey, http.MethodPost, path, timestamp, c.cfg.AccessKey))

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Str("response", string(respBody)).
		Msg("sms accepted by gateway")

	return nil
}
