package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/MarvinWeber/LiftLog/internal/pkg/database"
	metrics "github.com/MarvinWeber/LiftLog/internal/pkg/metrics/counter"
	"github.com/MarvinWeber/LiftLog/internal/pkg/premium"
	"github.com/MarvinWeber/LiftLog/internal/pkg/revenuecat"
)

const (
	counterFlushInterval = 5 * time.Second
	pendingSweepInterval = 10 * time.Minute
)

// Manager runs the background tasks: flushing view counters from Redis to
// the database and retrying webhook events that arrived before their user
// existed.
type Manager struct {
	counterFlushTicker *time.Ticker
	pendingSweepTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global background task manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// Start starts the background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Background Manager] Starting background tasks")

	m.counterFlushTicker = time.NewTicker(counterFlushInterval)
	m.wg.Add(1)
	go m.counterFlushWorker()

	m.pendingSweepTicker = time.NewTicker(pendingSweepInterval)
	m.wg.Add(1)
	go m.pendingSweepWorker()

	log.Info("[Background Manager] Started successfully")
}

// Stop stops the background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Background Manager] Stopping background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.pendingSweepTicker != nil {
		m.pendingSweepTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()

	log.Info("[Background Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes view counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Background Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[Background Manager] Counter flush error: %v", err)
			}
		}
	}
}

// pendingSweepWorker periodically retries webhook events stored before their
// external id resolved to an account
func (m *Manager) pendingSweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Background Manager] Pending sweep worker stopping")
			return
		case <-m.pendingSweepTicker.C:
			svc := premium.NewServiceFromDB(database.GetDB(), revenuecat.NewClientFromEnv())
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			applied, err := svc.SweepPendingEvents(ctx)
			cancel()
			if err != nil {
				log.Errorf("[Background Manager] Pending sweep error: %v", err)
			} else if applied > 0 {
				log.Infof("[Background Manager] Pending sweep applied %d events", applied)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
