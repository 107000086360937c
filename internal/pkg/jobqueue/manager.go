package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	metrics "github.com/chouha-community/gatekeeper/internal/pkg/metrics/counter"
)

const (
	reconcileInterval    = 5 * time.Minute
	keepAliveInterval    = 5 * time.Minute
	counterFlushInterval = 5 * time.Second
)

// Reconciler performs one guild/store reconciliation pass.
type Reconciler func(ctx context.Context)

// StatusReporter returns a one-line status for the keep-alive log.
type StatusReporter func() string

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	reconciler         Reconciler
	statusReporter     StatusReporter
	reconcileTicker    *time.Ticker
	keepAliveTicker    *time.Ticker
	counterFlushTicker *time.Ticker
	flushCounters      bool
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:  NewQueue(3),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// SetReconciler installs the periodic reconciliation pass. Call before Start.
func (m *Manager) SetReconciler(r Reconciler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciler = r
}

// SetStatusReporter installs the keep-alive status source. Call before Start.
func (m *Manager) SetStatusReporter(r StatusReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusReporter = r
}

// EnableCounterFlush turns on the Redis-to-database counter flush. Only the
// process that owns the database connection should enable it.
func (m *Manager) EnableCounterFlush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCounters = true
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// A process without registered handlers only enqueues; running workers
	// there would fail every job it picked up.
	if m.queue.HasHandlers() {
		m.queue.Start()
	}

	if m.reconciler != nil {
		m.reconcileTicker = time.NewTicker(reconcileInterval)
		m.wg.Add(1)
		go m.reconcileWorker()
	}

	m.keepAliveTicker = time.NewTicker(keepAliveInterval)
	m.wg.Add(1)
	go m.keepAliveWorker()

	if m.flushCounters {
		m.counterFlushTicker = time.NewTicker(counterFlushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker()
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.keepAliveTicker != nil {
		m.keepAliveTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker periodically cross-references the guild against the store
func (m *Manager) reconcileWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconciliation worker (interval: %s)", reconcileInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reconciliation worker stopping")
			return
		case <-m.reconcileTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			m.reconciler(ctx)
			cancel()
		}
	}
}

// keepAliveWorker writes a periodic heartbeat line so operators can tell a
// quiet process from a dead one.
func (m *Manager) keepAliveWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Keep-alive worker stopping")
			return
		case <-m.keepAliveTicker.C:
			status := ""
			if m.statusReporter != nil {
				status = m.statusReporter()
			}
			pending, _ := m.queue.GetQueueSize(context.Background())
			log.Infof("[JobQueue Manager] Alive - pending_jobs=%d %s", pending, status)
		}
	}
}

// counterFlushWorker periodically flushes pending counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
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
