package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrJobQueueIsFull = errors.New("очередь заданий заполнена")
	ErrJobQueueClosed = errors.New("очередь заданий закрыта")
)

// Job представляет собой функцию, выполняющуюся в очереди заданий.
type Job func(ctx context.Context)

// JobQueueService выполняет фоновые задания вне обработки запросов:
// запись журнала сообщений и периодическую очистку.
type JobQueueService struct {
	jobs    chan Job
	resume  chan struct{}
	paused  atomic.Bool
	closing atomic.Bool
	wg      sync.WaitGroup
	mu      sync.Mutex // защищает resume и отправку в jobs при закрытии
}

// NewJobQueueService создает очередь ёмкостью capacity и запускает workers воркеров.
// Воркеры завершаются при отмене ctx или после Shutdown.
func NewJobQueueService(ctx context.Context, capacity, workers int) *JobQueueService {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}

	service := &JobQueueService{
		jobs:   make(chan Job, capacity),
		resume: make(chan struct{}),
	}
	service.start(ctx, workers)

	return service
}

func (jqs *JobQueueService) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		jqs.wg.Add(1)

		go func(workerID int) {
			defer jqs.wg.Done()

			for {
				select {
				case job, ok := <-jqs.jobs:
					if !ok {
						return
					}

					if jqs.paused.Load() {
						jqs.mu.Lock()
						resume := jqs.resume
						paused := jqs.paused.Load()
						jqs.mu.Unlock()

						if paused {
							select {
							case <-resume:
							case <-ctx.Done():
								return
							}
						}
					}

					jqs.run(ctx, workerID, job)
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}
}

// run не даёт панике в задании остановить воркер
func (jqs *JobQueueService) run(ctx context.Context, workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("job panicked", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()

	job(ctx)
}

// Enqueue добавляет задание без ожидания.
// Возвращает ошибку, если очередь заполнена или закрыта.
func (jqs *JobQueueService) Enqueue(job Job) error {
	jqs.mu.Lock()
	defer jqs.mu.Unlock()

	if jqs.closing.Load() {
		return ErrJobQueueClosed
	}

	select {
	case jqs.jobs <- job:
		return nil
	default:
		return ErrJobQueueIsFull
	}
}

// ScheduleJob ставит задание в очередь через delay.
func (jqs *JobQueueService) ScheduleJob(job Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := jqs.Enqueue(job); err != nil && !errors.Is(err, ErrJobQueueClosed) {
			logger.Log.Error("failed to schedule job", zap.Duration("delay", delay), zap.Error(err))
		}
	})
}

// Pause приостанавливает выполнение заданий.
func (jqs *JobQueueService) Pause() {
	jqs.paused.Store(true)
}

// Resume возобновляет выполнение заданий после паузы.
func (jqs *JobQueueService) Resume() {
	if jqs.paused.CompareAndSwap(true, false) {
		jqs.mu.Lock()
		defer jqs.mu.Unlock()
		close(jqs.resume)
		jqs.resume = make(chan struct{})
	}
}

// PauseAndResume приостанавливает выполнение заданий на delay.
func (jqs *JobQueueService) PauseAndResume(delay time.Duration) {
	jqs.Pause()
	time.AfterFunc(delay, jqs.Resume)
}

// Shutdown закрывает очередь, дожидается выполнения уже поставленных заданий и завершения воркеров.
func (jqs *JobQueueService) Shutdown() {
	jqs.mu.Lock()
	if !jqs.closing.CompareAndSwap(false, true) {
		jqs.mu.Unlock()
		return
	}
	close(jqs.jobs)
	jqs.mu.Unlock()

	jqs.Resume()
	jqs.wg.Wait()
}
