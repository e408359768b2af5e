package infra

import (
	"errors"
	"hash/maphash"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull  = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

// KeyedPool runs jobs on a fixed set of workers. Jobs sharing a key land on
// the same worker and run in submission order.
type KeyedPool struct {
	seed   maphash.Seed
	queues []chan func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewKeyedPool(workers, queueSize int) *KeyedPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &KeyedPool{
		seed:   maphash.MakeSeed(),
		queues: make([]chan func(), workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
		p.wg.Add(1)
		go p.work(i, p.queues[i])
	}
	return p
}

// Submit never blocks: a full shard yields ErrQueueFull.
func (p *KeyedPool) Submit(key int64, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queues[p.shard(key)] <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits until the queued ones are done.
func (p *KeyedPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *KeyedPool) shard(key int64) int {
	var h maphash.Hash
	h.SetSeed(p.seed)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(key >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return int(h.Sum64() % uint64(len(p.queues)))
}

func (p *KeyedPool) work(id int, queue <-chan func()) {
	defer p.wg.Done()
	for job := range queue {
		run(id, job)
	}
}

func run(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"worker": worker,
				"panic":  r,
			}).Errorln("job panicked\n" + string(debug.Stack()))
		}
	}()
	job()
}
