package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"VPN-Shop-bot/internal/db"
	"VPN-Shop-bot/internal/logger"
	"go.uber.org/zap"
)

// Проверка HMAC подписи webhook YooKassa (Authorization или Content-Yoomoney-Signature)
func checkYooKassaSignature(secret string, body []byte, authHeader, yoomoneyHeader string) bool {
	var signatures []string
	for _, prefix := range []string{"HMAC ", "HMAC-SHA256 "} {
		if strings.HasPrefix(authHeader, prefix) {
			signatures = append(signatures, strings.TrimPrefix(authHeader, prefix))
			break
		}
	}
	if yoomoneyHeader != "" {
		signatures = append(signatures, yoomoneyHeader)
	}
	if len(signatures) == 0 {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	calc := hex.EncodeToString(h.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(calc)) {
			return true
		}
	}
	return false
}

// WebhookHandler принимает уведомления YooKassa. Выдачей доступа занимается
// только polling-watcher — иначе успешный платёж обрабатывался бы дважды;
// webhook лишь фиксирует событие и сигналит админу о расхождениях.
func WebhookHandler(secret string, store db.PaymentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("WebhookHandler")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body.Close()
		if !checkYooKassaSignature(secret, body,
			r.Header.Get("Authorization"), r.Header.Get("Content-Yoomoney-Signature")) {
			logger.NotifyAdmin("Недействительная подпись webhook YooKassa")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid signature"))
			return
		}
		var event struct {
			Event  string `json:"event"`
			Object struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"object"`
		}
		if err := json.Unmarshal(body, &event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		logger.Info("yookassa webhook",
			zap.String("event", event.Event),
			zap.String("payment_id", event.Object.ID),
			zap.String("status", event.Object.Status))

		if event.Object.Status == "succeeded" {
			if _, ok := store.Get(event.Object.ID); !ok {
				// Платёж нам неизвестен: либо уже выдан, либо потерян при рестарте
				logger.NotifyAdmin("Webhook: успешный платёж " + event.Object.ID + " отсутствует в хранилище")
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
