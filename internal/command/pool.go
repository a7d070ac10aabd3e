package command

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shaiso/Grantflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultPoolWorkers = 8
	defaultPoolQueue   = 64
)

// Pool — фиксированный набор воркеров с ограниченной очередью.
type Pool struct {
	tasks  chan func()
	quit   chan struct{}
	stop   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
}

// NewPool создаёт и запускает Pool.
// workers <= 0 и queue < 0 заменяются значениями по умолчанию.
func NewPool(workers, queue int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	if queue < 0 {
		queue = defaultPoolQueue
	}

	p := &Pool{
		tasks:  make(chan func(), queue),
		quit:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: telemetry.OrDefault(logger),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Submit ставит задачу в очередь.
// Блокируется, пока не освободится место, не закончится ctx или не остановится Pool.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		telemetry.PoolQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// Close перестаёт принимать задачи, выполняет уже принятые и ждёт воркеров.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)

		// Ждём завершения Submit, успевших взять RLock.
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		close(p.stop)
		p.wg.Wait()
		p.logger.Info("executor pool stopped")
	})
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.tasks:
			p.run(task)
		case <-p.stop:
			// Дорабатываем очередь
			for {
				select {
				case task := <-p.tasks:
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(task func()) {
	telemetry.PoolQueueDepth.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", "panic", r)
		}
	}()
	task()
}

// Future — результат асинхронного выполнения команды.
type Future struct {
	done   chan struct{}
	result *Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(res *Result) {
	f.result = res
	close(f.done)
}

// fail завершает Future отказом, не дошедшим до очереди.
func (f *Future) fail(res *Result) (*Future, error) {
	f.complete(res)
	return f, res.Err()
}

// Done закрывается, когда результат готов.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait ждёт результат или окончания ctx.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result возвращает результат или nil, если он ещё не готов.
func (f *Future) Result() *Result {
	select {
	case <-f.done:
		return f.result
	default:
		return nil
	}
}
