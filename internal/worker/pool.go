package worker

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 1000

// Stats 协程池统计
type Stats struct {
	WorkerCount int
	QueueLen    int
	QueueCap    int
	Submitted   uint64
	Executed    uint64
	Failed      uint64
	Dropped     uint64
}

// Pool 后台任务协程池，Stop 时会执行完队列中剩余的任务
type Pool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Pool{
		workers: workers,
		queue:   make(chan func(), queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	log.Debugf("Worker pool started with %d workers (queue=%d)", workers, queueSize)
	return p
}

// Submit 非阻塞提交，队列已满或已停止时返回 false
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		log.Warn("Worker pool queue is full, task dropped")
		return false
	}
}

// SubmitBlocking 阻塞提交，timeout <= 0 时一直等待
func (p *Pool) SubmitBlocking(task func(), timeout time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	case <-expire:
		p.dropped.Add(1)
		return false
	}
}

// Stop 停止接收任务并等待队列清空，可重复调用
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("Worker pool stopped (executed=%d, failed=%d)", p.executed.Load(), p.failed.Load())
}

// GetStats 返回当前统计
func (p *Pool) GetStats() Stats {
	return Stats{
		WorkerCount: p.workers,
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
		Submitted:   p.submitted.Load(),
		Executed:    p.executed.Load(),
		Failed:      p.failed.Load(),
		Dropped:     p.dropped.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.queue {
		if task == nil {
			continue
		}
		p.execute(task)
	}
}

// execute 执行任务并捕获 panic
func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			log.Errorf("Panic recovered in background task: %v", r)
		}
		p.executed.Add(1)
	}()
	task()
}
