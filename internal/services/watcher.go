package services

import (
	"context"
	"fmt"
	"time"

	"VPN-Shop-bot/internal/db"
	"VPN-Shop-bot/internal/logger"
	"go.uber.org/zap"
)

// PaymentAPI — то, что watcher требует от платёжного провайдера
type PaymentAPI interface {
	GetPayment(ctx context.Context, paymentID string) (*YKPayment, error)
}

// Provisioner — то, что watcher требует от панели
type Provisioner interface {
	UpsertClient(ctx context.Context, tgUserID int64, days int, limitGB int64) (string, error)
}

// Notifier — канал доставки результата пользователю (реализуется ботом)
type Notifier interface {
	NotifyUser(userID int64, text string) error
	EditMessage(chatID int64, messageID int, text string) error
}

// Watcher ведёт платёж от создания до терминального состояния:
// опрашивает YooKassa и при успехе запускает выдачу доступа.
// Один watcher на платёж, запускается ровно один раз при создании.
type Watcher struct {
	payments PaymentAPI
	panel    Provisioner
	store    db.PaymentStore
	notify   Notifier
	tasks    *Supervisor

	PollInterval time.Duration
	Deadline     time.Duration
}

func NewWatcher(payments PaymentAPI, panel Provisioner, store db.PaymentStore, notify Notifier, tasks *Supervisor) *Watcher {
	return &Watcher{
		payments:     payments,
		panel:        panel,
		store:        store,
		notify:       notify,
		tasks:        tasks,
		PollInterval: 5 * time.Second,
		Deadline:     10 * time.Minute,
	}
}

// Start запускает фоновое наблюдение за платежом
func (w *Watcher) Start(paymentID string) {
	w.tasks.Go("watch_payment_"+paymentID, func() error {
		return w.watch(context.Background(), paymentID)
	})
}

func (w *Watcher) watch(ctx context.Context, paymentID string) error {
	rec, ok := w.store.Get(paymentID)
	if !ok {
		return fmt.Errorf("payment %s not found in store", paymentID)
	}
	// Дедлайн считается от создания платежа, а не от старта watcher:
	// платёж, подхваченный после рестарта, не получает срок заново
	created := time.Now()
	if rec.CreatedAt > 0 {
		created = time.Unix(rec.CreatedAt, 0)
	}
	deadline := created.Add(w.Deadline)

	for time.Now().Before(deadline) {
		p, err := w.payments.GetPayment(ctx, paymentID)
		if err != nil {
			w.notify.NotifyUser(rec.UserID, "Ошибка при обработке оплаты: "+err.Error())
			return err
		}
		logger.Info("payment status",
			zap.String("payment_id", paymentID),
			zap.String("status", p.Status),
			zap.Bool("paid", p.Paid))

		if p.Paid || p.Status == "succeeded" {
			w.tasks.Go("provision_"+paymentID, func() error {
				return w.provision(ctx, rec)
			})
			return nil
		}

		switch p.Status {
		case "canceled", "expired", "refunded":
			w.store.Remove(paymentID)
			w.notify.NotifyUser(rec.UserID, "Платёж отменён/истёк. Попробуйте ещё раз /start")
			return nil
		}

		time.Sleep(w.PollInterval)
	}

	w.store.Remove(paymentID)
	w.notify.NotifyUser(rec.UserID, "Не дождался подтверждения оплаты. Если вы оплатили — напишите в поддержку.")
	return nil
}

// provision выдаёт или продлевает доступ после успешной оплаты.
// Ошибка уходит пользователю как есть и возвращается наверх,
// чтобы supervisor отметил задачу как упавшую; повторов нет.
func (w *Watcher) provision(ctx context.Context, rec db.PaymentRecord) error {
	link, err := w.panel.UpsertClient(ctx, rec.UserID, rec.Days, 0)
	if err != nil {
		w.notify.NotifyUser(rec.UserID, "Ошибка выдачи доступа: "+err.Error())
		return err
	}
	// Сообщение со ссылкой на оплату меняем на подтверждение
	_ = w.notify.EditMessage(rec.ChatID, rec.MessageID, "✅ Оплата подтверждена. Доступ отправлен отдельным сообщением.")
	if err := w.notify.NotifyUser(rec.UserID, "✅ Оплата получена.\nВаша ссылка:\n"+link); err != nil {
		return err
	}
	w.store.Remove(rec.PaymentID)
	return nil
}
