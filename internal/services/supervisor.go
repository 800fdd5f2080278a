package services

import (
	"sync"

	"VPN-Shop-bot/internal/logger"
	"go.uber.org/zap"
)

// Supervisor запускает фоновые задачи и делает их падения наблюдаемыми:
// ошибка или паника задачи уходит в лог и админу, а не теряется в горутине.
type Supervisor struct {
	wg sync.WaitGroup
}

func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Go запускает именованную задачу в отдельной горутине
func (s *Supervisor) Go(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer logger.NotifyOnPanic(name)
		if err := fn(); err != nil {
			logger.Error("background task failed", zap.String("task", name), zap.Error(err))
			logger.NotifyAdmin("Задача " + name + " завершилась с ошибкой: " + err.Error())
		}
	}()
}

// Wait блокируется до завершения всех запущенных задач
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
