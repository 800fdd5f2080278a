package bot

import (
	"log"

	"VPN-Shop-bot/internal/db"
	"VPN-Shop-bot/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot связывает Telegram-апдейты с платёжным пайплайном.
// Все зависимости передаются явно из main.
type Bot struct {
	api      *tgbotapi.BotAPI
	xui      *services.XUIClient
	payments *services.YooKassaClient
	store    db.PaymentStore
	watcher  *services.Watcher
	limiter  *RateLimiter
}

func NewBot(api *tgbotapi.BotAPI, xui *services.XUIClient, payments *services.YooKassaClient, store db.PaymentStore, watcher *services.Watcher) *Bot {
	return &Bot{
		api:      api,
		xui:      xui,
		payments: payments,
		store:    store,
		watcher:  watcher,
		limiter:  NewRateLimiter(),
	}
}

// Start запускает long polling и блокируется до закрытия канала апдейтов
func (b *Bot) Start() {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		b.HandleUpdate(update)
	}
}
