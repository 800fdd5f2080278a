package services

import (
	"context"
	"fmt"
	"time"

	"VPN-Shop-bot/internal/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NotifyExpiringClients предупреждает пользователей, чей доступ на панели
// истекает в ближайшие daysBefore дней. Запускается по cron раз в сутки.
func NotifyExpiringClients(bot *tgbotapi.BotAPI, xui *XUIClient, daysBefore int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	clients, err := xui.InboundClients(ctx)
	if err != nil {
		logger.NotifyAdmin("Не удалось получить клиентов панели для уведомлений: " + err.Error())
		return
	}

	now := time.Now().UnixMilli()
	soon := now + int64(daysBefore)*dayMs
	for _, c := range clients {
		if c.ExpiryTime <= now || c.ExpiryTime > soon {
			continue
		}
		userID, ok := TelegramIDFromEmail(c.Email)
		if !ok {
			continue // клиент заведён не ботом
		}
		until := time.UnixMilli(c.ExpiryTime).Format("2006-01-02 15:04")
		msg := tgbotapi.NewMessage(userID,
			fmt.Sprintf("Ваша подписка истекает %s. Продлить: /start", until))
		if _, err := bot.Send(msg); err != nil {
			logger.NotifyAdmin(fmt.Sprintf("Ошибка отправки уведомления пользователю %d: %v", userID, err))
		}
	}
}
