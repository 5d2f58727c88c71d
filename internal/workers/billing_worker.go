package workers

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/services"
)

const workerName = "billing"

// BillingWorker периодически откатывает истёкшие подписки и сверяет счётчики отзывов
type BillingWorker struct {
	db                *gorm.DB
	sweep             services.BillingSweepService
	sweepInterval     time.Duration
	reconcileInterval time.Duration
	now               func() time.Time
	wg                sync.WaitGroup
}

func NewBillingWorker(db *gorm.DB, sweep services.BillingSweepService, sweepInterval, reconcileInterval time.Duration) *BillingWorker {
	return &BillingWorker{
		db:                db,
		sweep:             sweep,
		sweepInterval:     sweepInterval,
		reconcileInterval: reconcileInterval,
		now:               time.Now,
	}
}

// Start запускает фоновые циклы; остановка - отменой ctx
func (w *BillingWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		// первый проход сразу: сервер мог быть выключен в момент истечения
		w.RunSweep(ctx)
		w.loop(ctx, w.sweepInterval, w.RunSweep)
	}()
	go func() {
		defer w.wg.Done()
		w.loop(ctx, w.reconcileInterval, w.RunReconcile)
	}()
	logger.Info("billing worker started",
		"sweep_interval", w.sweepInterval.String(),
		"reconcile_interval", w.reconcileInterval.String())
}

// Wait дожидается завершения циклов после отмены ctx
func (w *BillingWorker) Wait() {
	w.wg.Wait()
}

func (w *BillingWorker) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("billing worker stopped")
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (w *BillingWorker) RunSweep(ctx context.Context) {
	resp, err := w.sweep.SweepExpired(ctx, w.db, w.now())
	if err != nil {
		logger.WorkerLog(workerName, "sweep_expired", 0, err)
		return
	}
	logger.WorkerLog(workerName, "sweep_expired", resp.Downgraded, nil)
}

func (w *BillingWorker) RunReconcile(ctx context.Context) {
	resp, err := w.sweep.ReconcileCounters(ctx, w.db)
	if err != nil {
		logger.WorkerLog(workerName, "reconcile_counters", 0, err)
		return
	}
	logger.WorkerLog(workerName, "reconcile_counters", resp.Repaired, nil)
}
