package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"VPN-Shop-bot/internal/db"
)

type fakePaymentAPI struct {
	mu        sync.Mutex
	responses []*YKPayment // последний ответ повторяется
	err       error
	calls     int
}

func (f *fakePaymentAPI) GetPayment(ctx context.Context, paymentID string) (*YKPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakePaymentAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProvisioner struct {
	mu    sync.Mutex
	calls []int // days каждого вызова
	link  string
	err   error
}

func (f *fakeProvisioner) UpsertClient(ctx context.Context, tgUserID int64, days int, limitGB int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, days)
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

func (f *fakeProvisioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	edits    []string
}

func (f *fakeNotifier) NotifyUser(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) EditMessage(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeNotifier) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func newTestWatcher(payments PaymentAPI, panel Provisioner, notify Notifier) (*Watcher, *db.MemoryStore, *Supervisor) {
	store := db.NewMemoryStore()
	tasks := NewSupervisor()
	w := NewWatcher(payments, panel, store, notify, tasks)
	w.PollInterval = 5 * time.Millisecond
	// CreatedAt хранится в секундах, запас перекрывает округление
	w.Deadline = 5 * time.Second
	return w, store, tasks
}

func testRecord() db.PaymentRecord {
	return db.PaymentRecord{
		PaymentID: "pay-1",
		UserID:    42,
		Days:      30,
		ChatID:    100,
		MessageID: 7,
		CreatedAt: time.Now().Unix(),
	}
}

func TestWatcherSuccessProvisionsOnce(t *testing.T) {
	payments := &fakePaymentAPI{responses: []*YKPayment{
		{ID: "pay-1", Status: "pending"},
		{ID: "pay-1", Status: "succeeded", Paid: true},
	}}
	panel := &fakeProvisioner{link: "vless://uuid@host:443/?x#tag"}
	notify := &fakeNotifier{}
	w, store, tasks := newTestWatcher(payments, panel, notify)

	store.Put(testRecord())
	w.Start("pay-1")
	tasks.Wait()

	if panel.callCount() != 1 {
		t.Fatalf("выдача запускалась %d раз, ожидался 1", panel.callCount())
	}
	if panel.calls[0] != 30 {
		t.Errorf("выдача на %d дней, ожидалось 30", panel.calls[0])
	}
	if !strings.Contains(notify.lastMessage(), panel.link) {
		t.Errorf("ссылка не дошла до пользователя: %q", notify.lastMessage())
	}
	if len(notify.edits) != 1 || !strings.Contains(notify.edits[0], "подтверждена") {
		t.Errorf("исходное сообщение не обновлено: %v", notify.edits)
	}
	if _, ok := store.Get("pay-1"); ok {
		t.Error("запись платежа не удалена после выдачи")
	}
}

func TestWatcherCanceledNoProvisioning(t *testing.T) {
	for _, status := range []string{"canceled", "expired", "refunded"} {
		payments := &fakePaymentAPI{responses: []*YKPayment{{ID: "pay-1", Status: status}}}
		panel := &fakeProvisioner{link: "vless://x"}
		notify := &fakeNotifier{}
		w, store, tasks := newTestWatcher(payments, panel, notify)

		store.Put(testRecord())
		w.Start("pay-1")
		tasks.Wait()

		if panel.callCount() != 0 {
			t.Errorf("%s: выдача не должна запускаться", status)
		}
		if !strings.Contains(notify.lastMessage(), "отменён") {
			t.Errorf("%s: пользователь не уведомлён об отмене: %q", status, notify.lastMessage())
		}
		if _, ok := store.Get("pay-1"); ok {
			t.Errorf("%s: запись платежа не удалена", status)
		}
	}
}

func TestWatcherTimeout(t *testing.T) {
	payments := &fakePaymentAPI{responses: []*YKPayment{{ID: "pay-1", Status: "pending"}}}
	panel := &fakeProvisioner{link: "vless://x"}
	notify := &fakeNotifier{}
	w, store, tasks := newTestWatcher(payments, panel, notify)
	w.Deadline = 30 * time.Millisecond

	store.Put(testRecord())
	w.Start("pay-1")
	tasks.Wait()

	if panel.callCount() != 0 {
		t.Error("по таймауту выдача не должна запускаться")
	}
	if !strings.Contains(notify.lastMessage(), "Не дождался подтверждения") {
		t.Errorf("нет сообщения о таймауте: %q", notify.lastMessage())
	}
	// После дедлайна опрос прекращается
	polled := payments.callCount()
	time.Sleep(30 * time.Millisecond)
	if payments.callCount() != polled {
		t.Error("опрос продолжился после дедлайна")
	}
}

func TestWatcherResumedPaymentKeepsOriginalDeadline(t *testing.T) {
	payments := &fakePaymentAPI{responses: []*YKPayment{{ID: "pay-1", Status: "pending"}}}
	panel := &fakeProvisioner{link: "vless://x"}
	notify := &fakeNotifier{}
	w, store, tasks := newTestWatcher(payments, panel, notify)
	w.Deadline = 10 * time.Minute

	// Платёж создан задолго до старта watcher (рестарт процесса):
	// срок не начинается заново
	rec := testRecord()
	rec.CreatedAt = time.Now().Add(-20 * time.Minute).Unix()
	store.Put(rec)
	w.Start("pay-1")
	tasks.Wait()

	if payments.callCount() != 0 {
		t.Errorf("опрос после истёкшего дедлайна: %d вызовов", payments.callCount())
	}
	if panel.callCount() != 0 {
		t.Error("выдача не должна запускаться")
	}
	if !strings.Contains(notify.lastMessage(), "Не дождался подтверждения") {
		t.Errorf("нет сообщения о таймауте: %q", notify.lastMessage())
	}
	if _, ok := store.Get("pay-1"); ok {
		t.Error("запись платежа не удалена")
	}
}

func TestWatcherPollError(t *testing.T) {
	payments := &fakePaymentAPI{err: errors.New("connection refused")}
	panel := &fakeProvisioner{link: "vless://x"}
	notify := &fakeNotifier{}
	w, store, tasks := newTestWatcher(payments, panel, notify)

	store.Put(testRecord())
	w.Start("pay-1")
	tasks.Wait()

	if panel.callCount() != 0 {
		t.Error("при ошибке опроса выдача не должна запускаться")
	}
	if !strings.Contains(notify.lastMessage(), "connection refused") {
		t.Errorf("ошибка не дошла до пользователя: %q", notify.lastMessage())
	}
}

func TestWatcherProvisionErrorReported(t *testing.T) {
	payments := &fakePaymentAPI{responses: []*YKPayment{{ID: "pay-1", Status: "succeeded", Paid: true}}}
	panel := &fakeProvisioner{err: &PanelError{Msg: "addClient error: quota"}}
	notify := &fakeNotifier{}
	w, store, tasks := newTestWatcher(payments, panel, notify)

	store.Put(testRecord())
	w.Start("pay-1")
	tasks.Wait()

	if !strings.Contains(notify.lastMessage(), "Ошибка выдачи доступа") ||
		!strings.Contains(notify.lastMessage(), "quota") {
		t.Errorf("ошибка выдачи не передана пользователю дословно: %q", notify.lastMessage())
	}
}
