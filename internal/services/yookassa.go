package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const ykAPIURL = "https://api.yookassa.ru/v3/payments"

// YKPayment — платёж YooKassa в объёме, нужном боту
type YKPayment struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Paid         bool   `json:"paid"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

type YooKassaClient struct {
	shopID    string
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewYooKassaClient(shopID, secretKey string) *YooKassaClient {
	return &YooKassaClient{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   ykAPIURL,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// CreatePayment создаёт платёж с немедленным capture и redirect-подтверждением.
// Каждый вызов идёт со свежим Idempotence-Key.
func (c *YooKassaClient) CreatePayment(ctx context.Context, amount int, description, returnURL string, metadata map[string]interface{}) (*YKPayment, error) {
	payload := map[string]interface{}{
		"amount":       map[string]string{"value": fmt.Sprintf("%d.00", amount), "currency": "RUB"},
		"capture":      true,
		"confirmation": map[string]string{"type": "redirect", "return_url": returnURL},
		"description":  description,
		"metadata":     metadata,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payment payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.New().String())
	req.SetBasicAuth(c.shopID, c.secretKey)

	return c.do(req)
}

// GetPayment возвращает текущий статус платежа
func (c *YooKassaClient) GetPayment(ctx context.Context, paymentID string) (*YKPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("create payment status request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)

	return c.do(req)
}

func (c *YooKassaClient) do(req *http.Request) (*YKPayment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read yookassa response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &PaymentProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var p YKPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal yookassa response: %w", err)
	}
	return &p, nil
}
