// Package workers contains code to manage the goroutines of a live endpoint.
package workers

import (
	"errors"
	"sync"

	"github.com/ooni/minisr/internal/model"
)

// ErrShutdown is the error returned by a worker that is shutting down.
var ErrShutdown = errors.New("worker is shutting down")

// Manager coordinates the lifecycles of the goroutines that drive an endpoint
// over a real socket. The zero value is invalid; use [NewManager].
type Manager struct {
	logger model.Logger

	// shouldShutdown is closed to signal all workers to shut down.
	shouldShutdown chan any

	// shutdownOnce ensures we close shouldShutdown once.
	shutdownOnce sync.Once

	// mu protects running.
	mu sync.Mutex

	// running contains the names of the workers still running.
	running map[string]int

	// wg tracks the running workers.
	wg *sync.WaitGroup
}

// NewManager creates a new manager.
func NewManager(logger model.Logger) *Manager {
	return &Manager{
		logger:         logger,
		shouldShutdown: make(chan any),
		shutdownOnce:   sync.Once{},
		running:        map[string]int{},
		wg:             &sync.WaitGroup{},
	}
}

// StartWorker starts a named worker in a background goroutine. The worker
// must call [Manager.OnWorkerDone] with the same name when it returns.
func (m *Manager) StartWorker(name string, fx func()) {
	m.mu.Lock()
	m.running[name]++
	m.mu.Unlock()
	m.wg.Add(1)
	m.logger.Debugf("%s: started", name)
	go fx()
}

// OnWorkerDone must be called when a worker goroutine terminates.
func (m *Manager) OnWorkerDone(name string) {
	m.mu.Lock()
	m.running[name]--
	if m.running[name] <= 0 {
		delete(m.running, name)
	}
	m.mu.Unlock()
	m.logger.Debugf("%s: done", name)
	m.wg.Done()
}

// Running returns how many workers have not terminated yet.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.running {
		total += n
	}
	return total
}

// StartShutdown initiates the shutdown of all workers.
func (m *Manager) StartShutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shouldShutdown)
	})
}

// ShouldShutdown returns the channel closed when workers should shut down.
func (m *Manager) ShouldShutdown() <-chan any {
	return m.shouldShutdown
}

// WaitWorkersShutdown blocks until all workers have shut down.
func (m *Manager) WaitWorkersShutdown() {
	m.wg.Wait()
}
