package demux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// batchThreshold is the number of queued buffers at which a worker signals
// its condition variable eagerly, rather than waiting for its next natural
// wake-up, per spec.md §4.9's backpressure mechanics.
const batchThreshold = 4096

// memCap is the soft ceiling on bytes queued per worker before Enqueue
// blocks the caller, per spec.md §4.9.
const memCap = 1 << 30 // 1 GiB

// backpressurePoll is how long Enqueue sleeps between rechecks of a
// worker's queued-bytes total while waiting for it to drain.
const backpressurePoll = 300 * time.Millisecond

type job struct {
	path string
	data []byte
}

// worker owns one goroutine draining a FIFO queue of serialized FASTQ
// records into their destination files, lazily creating (and
// gzip-wrapping) each destination the first time it is written to.
type worker struct {
	ctx   context.Context
	mu    sync.Mutex
	cond  *sync.Cond
	queue []job
	bytes int
	done  bool

	files map[string]*gzip.Writer
	raw   map[string]file.File
	err   error
}

func newWorker(ctx context.Context) *worker {
	w := &worker{
		ctx:   ctx,
		files: map[string]*gzip.Writer{},
		raw:   map[string]file.File{},
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Pool fans out routed FASTQ records across a fixed number of workers,
// one goroutine each, selected by sample position modulo worker count
// per spec.md §4.9's "pos mod T" rule.
type Pool struct {
	workers []*worker
	wg      sync.WaitGroup
}

// NewPool starts n worker goroutines, each opening its output files via
// github.com/grailbio/base/file under ctx. Call Close to flush and join
// them.
func NewPool(ctx context.Context, n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := range p.workers {
		w := newWorker(ctx)
		p.workers[i] = w
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	return p
}

// Enqueue routes data destined for path onto the worker selected by pos,
// blocking (with a poll-sleep backoff) while that worker's queue exceeds
// memCap, per spec.md §4.9's memory-bounded backpressure.
func (p *Pool) Enqueue(pos int, path string, data []byte) {
	w := p.workers[pos%len(p.workers)]
	for {
		w.mu.Lock()
		if w.bytes < memCap {
			w.queue = append(w.queue, job{path: path, data: data})
			w.bytes += len(data)
			// Wake a sleeping worker on its first queued job; beyond that,
			// only nudge it every batchThreshold jobs so a busy worker isn't
			// interrupted by every single enqueue.
			if len(w.queue) == 1 || len(w.queue)%batchThreshold == 0 {
				w.cond.Signal()
			}
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
		time.Sleep(backpressurePoll)
	}
}

// Close signals every worker to drain and exit, then joins them, returning
// the first write error encountered across all workers, if any.
func (p *Pool) Close() error {
	for _, w := range p.workers {
		w.mu.Lock()
		w.done = true
		w.cond.Signal()
		w.mu.Unlock()
	}
	p.wg.Wait()

	var first error
	for _, w := range p.workers {
		if w.err != nil && first == nil {
			first = w.err
		}
	}
	return first
}

func (w *worker) run() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.done {
			w.cond.Wait()
		}
		if len(w.queue) == 0 && w.done {
			w.mu.Unlock()
			break
		}
		batch := w.queue
		w.queue = nil
		w.bytes = 0
		w.mu.Unlock()

		for _, j := range batch {
			if err := w.write(j); err != nil {
				w.mu.Lock()
				if w.err == nil {
					w.err = err
				}
				w.mu.Unlock()
			}
		}
	}
	w.closeFiles()
}

func (w *worker) write(j job) error {
	gz, ok := w.files[j.path]
	if !ok {
		f, err := file.Create(w.ctx, j.path)
		if err != nil {
			return fmt.Errorf("demux: creating %s: %w", j.path, err)
		}
		gz = gzip.NewWriter(f.Writer(w.ctx))
		w.raw[j.path] = f
		w.files[j.path] = gz
	}
	if _, err := gz.Write(j.data); err != nil {
		return fmt.Errorf("demux: writing %s: %w", j.path, err)
	}
	return nil
}

func (w *worker) closeFiles() {
	for path, gz := range w.files {
		if err := gz.Close(); err != nil && w.err == nil {
			w.err = fmt.Errorf("demux: closing %s: %w", path, err)
		}
	}
	for path, f := range w.raw {
		if err := f.Close(w.ctx); err != nil && w.err == nil {
			w.err = fmt.Errorf("demux: closing %s: %w", path, err)
		}
	}
}
