package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier реализует services.Notifier поверх Telegram API
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) NotifyUser(userID int64, text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (n *Notifier) EditMessage(chatID int64, messageID int, text string) error {
	_, err := n.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}
