package services

import (
	"errors"
	"fmt"
)

// ErrClientNotFound — клиент не найден в inbound; это не ошибка панели,
// а обычный результат поиска (ветка "создать вместо продлить")
var ErrClientNotFound = errors.New("client not found")

// AuthError — панель отклонила логин/пароль
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return "3x-ui login failed: " + e.Msg
}

// PanelError — вызов панели не удался после повторного логина,
// либо панель ответила success=false
type PanelError struct {
	Msg string
}

func (e *PanelError) Error() string {
	return "panel error: " + e.Msg
}

// PaymentProviderError — не-2xx ответ от YooKassa, тело сохраняем для диагностики
type PaymentProviderError struct {
	StatusCode int
	Body       string
}

func (e *PaymentProviderError) Error() string {
	return fmt.Sprintf("YooKassa error %d: %s", e.StatusCode, e.Body)
}
