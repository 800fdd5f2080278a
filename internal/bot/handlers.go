package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"VPN-Shop-bot/internal/admin"
	"VPN-Shop-bot/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	text := update.Message.Text
	if text == "" {
		return
	}
	cmd := strings.Fields(text)[0]
	if !admin.IsAdmin(userID) && b.limiter.IsLimited(userID, cmd) {
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Пожалуйста, не так быстро! Подождите пару секунд...")
		b.api.Send(msg)
		return
	}
	keyboard := GetReplyKeyboard(userID)

	if admin.IsAdmin(userID) && strings.HasPrefix(text, "/admin_") {
		admin.HandleAdminCommand(b.api, &update, b.store, b.xui)
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Добро пожаловать!")
		msg.ReplyMarkup = welcomeKeyboard()
		b.api.Send(msg)
	case strings.HasPrefix(text, "/getkey"):
		b.handleGetKey(update.Message)
	case strings.HasPrefix(text, "/support"):
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Поддержка: напишите вашему администратору.")
		msg.ReplyMarkup = keyboard
		b.api.Send(msg)
	case strings.HasPrefix(text, "/help"):
		helpText := `Доступные команды:
/start — Купить или продлить VPN
/getkey — Повторно получить ссылку
/support — Связаться с поддержкой
/help — Показать эту справку

Покупка: /start → выберите тариф → оплатите по ссылке.
После оплаты бот сам проверит статус и пришлёт вашу VLESS-ссылку.`
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, helpText)
		msg.ReplyMarkup = keyboard
		b.api.Send(msg)
	default:
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Неизвестная команда. Используйте /help для списка всех возможностей.")
		msg.ReplyMarkup = keyboard
		b.api.Send(msg)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	switch {
	case data == "go_next":
		edit := tgbotapi.NewEditMessageTextAndMarkup(
			cb.Message.Chat.ID, cb.Message.MessageID,
			"Выберите тариф:", plansKeyboard())
		b.api.Send(edit)
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	case strings.HasPrefix(data, "pay:"):
		b.handlePay(cb, strings.TrimPrefix(data, "pay:"))
	default:
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	}
}

// handleGetKey повторно выдаёт ссылку уже существующему клиенту панели
func (b *Bot) handleGetKey(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := services.ClientEmail(msg.From.ID)
	client, err := b.xui.FindClientByEmail(ctx, email)
	if errors.Is(err, services.ErrClientNotFound) {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "У вас нет активной подписки. Для покупки используйте /start.")
		reply.ReplyMarkup = GetReplyKeyboard(msg.From.ID)
		b.api.Send(reply)
		return
	}
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка обращения к панели: "+err.Error()))
		return
	}
	link := b.xui.BuildVLESSLink(client.ID, email)
	b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "Ваша ссылка:\n"+link))
}
