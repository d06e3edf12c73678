package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"finance-api/internal/model"
)

const financeEventsChannel = "finance_events"

// ChangeListener слушает канал finance_events в Postgres и превращает
// уведомления триггеров в инвалидацию прогнозов и события для подписчиков.
// Это страховочный контур: пишущие пути сервиса инвалидируют кэш синхронно,
// слушатель покрывает изменения в обход сервиса (ручной SQL, другие процессы)
type ChangeListener struct {
	listener  *pq.Listener
	projector *ProjectorService
	logger    *logrus.Logger

	mu   sync.Mutex
	subs []chan model.ChangeEvent
}

func NewChangeListener(connString string, projector *ProjectorService, logger *logrus.Logger) *ChangeListener {
	eventCallback := func(event pq.ListenerEventType, err error) {
		if err != nil {
			logger.WithError(err).Warn("Событие слушателя уведомлений Postgres")
		}
	}

	return &ChangeListener{
		listener:  pq.NewListener(connString, 10*time.Second, time.Minute, eventCallback),
		projector: projector,
		logger:    logger,
	}
}

// Start подписывается на канал и запускает цикл обработки уведомлений
func (l *ChangeListener) Start(ctx context.Context) error {
	if err := l.listener.Listen(financeEventsChannel); err != nil {
		return err
	}

	l.logger.WithField("channel", financeEventsChannel).Info("Слушатель изменений запущен")
	go l.run(ctx)
	return nil
}

func (l *ChangeListener) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Слушатель изменений остановлен")
			return
		case n := <-l.listener.Notify:
			if n == nil {
				// Соединение было переустановлено: уведомления за время
				// разрыва потеряны, кэш сбрасывается целиком
				l.logger.Warn("Переподключение слушателя, полный сброс кэша прогнозов")
				l.projector.InvalidateAll()
				continue
			}
			l.handle(n.Extra)
		case <-time.After(90 * time.Second):
			if err := l.listener.Ping(); err != nil {
				l.logger.WithError(err).Warn("Ошибка проверки соединения слушателя")
			}
		}
	}
}

func (l *ChangeListener) handle(payload string) {
	var event model.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.WithError(err).Warnf("Нераспознанное уведомление: %s", payload)
		return
	}

	var ids []uuid.UUID
	if event.AccountID != nil {
		ids = append(ids, *event.AccountID)
	}
	if event.AccountFromID != nil {
		ids = append(ids, *event.AccountFromID)
	}
	if event.AccountToID != nil {
		ids = append(ids, *event.AccountToID)
	}
	l.projector.Invalidate(ids...)

	l.mu.Lock()
	for _, sub := range l.subs {
		select {
		case sub <- event:
		default:
			// Медленный подписчик не должен тормозить обработку уведомлений
		}
	}
	l.mu.Unlock()
}

// Subscribe возвращает канал событий изменений. Доставка негарантированная:
// при переполнении буфера события отбрасываются
func (l *ChangeListener) Subscribe() <-chan model.ChangeEvent {
	ch := make(chan model.ChangeEvent, 64)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

func (l *ChangeListener) Close() error {
	return l.listener.Close()
}
