package db

// PaymentRecord — ожидающий подтверждения платёж. Создаётся вместе с платежом
// в YooKassa, удаляется после выдачи доступа или неуспешного завершения.
type PaymentRecord struct {
	PaymentID string `gorm:"primaryKey"`
	UserID    int64
	Days      int
	ChatID    int64
	MessageID int
	CreatedAt int64
}
