package bot

import (
	"fmt"

	"VPN-Shop-bot/config"
	"VPN-Shop-bot/internal/admin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func welcomeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ДАЛЕЕ ➜", "go_next"),
		),
	)
}

// plansKeyboard строит кнопки тарифов из конфига
func plansKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range config.AppCfg.Plans {
		label := fmt.Sprintf("%d ₽ / %s", p.Price, p.Title)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "pay:"+p.Code),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func GetReplyKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	if admin.IsAdmin(userID) {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_payments"),
				tgbotapi.NewKeyboardButton("/admin_backup"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_broadcast"),
				tgbotapi.NewKeyboardButton("/start"),
				tgbotapi.NewKeyboardButton("/getkey"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/start"),
			tgbotapi.NewKeyboardButton("/getkey"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
}
