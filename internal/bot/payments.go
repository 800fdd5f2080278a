package bot

import (
	"context"
	"fmt"
	"time"

	"VPN-Shop-bot/config"
	"VPN-Shop-bot/internal/db"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handlePay создаёт платёж в YooKassa, показывает ссылку на оплату и ставит
// платёж под наблюдение. Обработчик возвращается сразу: подтверждение и выдачу
// доступа доделает watcher в фоне.
func (b *Bot) handlePay(cb *tgbotapi.CallbackQuery, planCode string) {
	plan, ok := config.PlanByCode(planCode)
	if !ok {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Неизвестный тариф"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userID := cb.From.ID
	description := fmt.Sprintf("Оплата тарифа %s для user %d", plan.Code, userID)
	metadata := map[string]interface{}{
		"tg_user_id": userID,
		"plan":       plan.Code,
		"days":       plan.Days,
	}
	payment, err := b.payments.CreatePayment(ctx, plan.Price, description, config.AppCfg.YKReturnURL, metadata)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(cb.Message.Chat.ID, "Ошибка создания платежа:\n"+err.Error()))
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	url := payment.Confirmation.ConfirmationURL
	if url == "" {
		b.api.Send(tgbotapi.NewMessage(cb.Message.Chat.ID, "Ошибка создания платежа: провайдер не вернул ссылку подтверждения"))
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		"Ссылка на оплату: "+url+"\n\nПосле оплаты я проверю статус и пришлю доступ.")
	edit.DisableWebPagePreview = true
	sent, err := b.api.Send(edit)
	messageID := cb.Message.MessageID
	if err == nil {
		messageID = sent.MessageID
	}
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Платёж создан"))

	b.store.Put(db.PaymentRecord{
		PaymentID: payment.ID,
		UserID:    userID,
		Days:      plan.Days,
		ChatID:    cb.Message.Chat.ID,
		MessageID: messageID,
		CreatedAt: time.Now().Unix(),
	})
	b.watcher.Start(payment.ID)
}
