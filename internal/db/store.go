package db

import (
	"sync"

	"gorm.io/gorm"
)

// PaymentStore хранит ожидающие платежи. Интерфейс отделён от watcher,
// чтобы in-memory реализацию можно было заменить на Postgres без правок
// логики пайплайна.
type PaymentStore interface {
	Put(rec PaymentRecord) error
	Get(paymentID string) (PaymentRecord, bool)
	Remove(paymentID string) error
	Pending() []PaymentRecord
}

// MemoryStore — карта в памяти; платежи теряются при рестарте процесса
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]PaymentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]PaymentRecord)}
}

func (s *MemoryStore) Put(rec PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.PaymentID] = rec
	return nil
}

func (s *MemoryStore) Get(paymentID string) (PaymentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[paymentID]
	return rec, ok
}

func (s *MemoryStore) Remove(paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, paymentID)
	return nil
}

func (s *MemoryStore) Pending() []PaymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PaymentRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out
}

// GormStore — долговременное хранилище в Postgres, переживает рестарты
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Put(rec PaymentRecord) error {
	return s.db.Create(&rec).Error
}

func (s *GormStore) Get(paymentID string) (PaymentRecord, bool) {
	var rec PaymentRecord
	if err := s.db.First(&rec, "payment_id = ?", paymentID).Error; err != nil {
		return PaymentRecord{}, false
	}
	return rec, true
}

func (s *GormStore) Remove(paymentID string) error {
	return s.db.Delete(&PaymentRecord{}, "payment_id = ?", paymentID).Error
}

func (s *GormStore) Pending() []PaymentRecord {
	var recs []PaymentRecord
	s.db.Order("created_at").Find(&recs)
	return recs
}
