package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"VPN-Shop-bot/config"
	"VPN-Shop-bot/internal/db"
	"VPN-Shop-bot/internal/logger"
	"VPN-Shop-bot/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ClientLister — доступ к списку клиентов панели (реализуется services.XUIClient)
type ClientLister interface {
	InboundClients(ctx context.Context) ([]services.Client, error)
}

func IsAdmin(userID int64) bool {
	return config.AppCfg.AdminTelegramID != 0 && userID == config.AppCfg.AdminTelegramID
}

func HandleAdminCommand(bot *tgbotapi.BotAPI, update *tgbotapi.Update, store db.PaymentStore, panel ClientLister) {
	if update.Message == nil || !IsAdmin(update.Message.From.ID) {
		return
	}
	cmd := update.Message.Command()
	switch cmd {
	case "admin_stats":
		handleStats(bot, update, store)
	case "admin_payments":
		handlePayments(bot, update, store)
	case "admin_broadcast":
		handleBroadcast(bot, update, panel)
	case "admin_backup":
		handleBackup(bot, update)
	}
	logger.LogAdminAction(update.Message.From.ID, cmd, update.Message.Text)
}

func handleStats(bot *tgbotapi.BotAPI, update *tgbotapi.Update, store db.PaymentStore) {
	pending := store.Pending()
	text := fmt.Sprintf("Платежей в ожидании: %d", len(pending))
	if len(pending) > 0 {
		oldest := pending[0]
		for _, p := range pending {
			if p.CreatedAt < oldest.CreatedAt {
				oldest = p
			}
		}
		text += "\nСамый старый: " + oldest.PaymentID + " от " +
			time.Unix(oldest.CreatedAt, 0).Format("2006-01-02 15:04:05")
	}
	bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text))
}

func handlePayments(bot *tgbotapi.BotAPI, update *tgbotapi.Update, store db.PaymentStore) {
	pending := store.Pending()
	if len(pending) == 0 {
		bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Нет платежей в ожидании."))
		return
	}
	var text strings.Builder
	text.WriteString("Платежи в ожидании:\n")
	for _, p := range pending {
		text.WriteString(fmt.Sprintf("%s — user %d, %d дн., создан %s\n",
			p.PaymentID, p.UserID, p.Days,
			time.Unix(p.CreatedAt, 0).Format("2006-01-02 15:04:05")))
	}
	bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text.String()))
}

// BroadcastRecipients собирает telegram id всех клиентов, заведённых ботом.
// Чужие записи панели и дубликаты пропускаются.
func BroadcastRecipients(clients []services.Client) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, c := range clients {
		id, ok := services.TelegramIDFromEmail(c.Email)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// handleBroadcast рассылает текст всем пользователям с клиентом на панели
func handleBroadcast(bot *tgbotapi.BotAPI, update *tgbotapi.Update, panel ClientLister) {
	text := strings.TrimSpace(update.Message.CommandArguments())
	if text == "" {
		bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Использование: /admin_broadcast <текст>"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	clients, err := panel.InboundClients(ctx)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Ошибка получения клиентов панели: "+err.Error()))
		return
	}
	ids := BroadcastRecipients(clients)
	sent := 0
	for _, id := range ids {
		if _, err := bot.Send(tgbotapi.NewMessage(id, text)); err == nil {
			sent++
		}
	}
	bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID,
		fmt.Sprintf("Рассылка отправлена %d из %d пользователям.", sent, len(ids))))
}

func handleBackup(bot *tgbotapi.BotAPI, update *tgbotapi.Update) {
	dsn := config.AppCfg.DatabaseURL
	if dsn == "" {
		bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Хранилище в памяти, бэкап недоступен. Задайте DATABASE_URL."))
		return
	}
	go AutoBackupDatabase(bot, update.Message.Chat.ID, dsn)
	bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Бэкап запущен."))
}
