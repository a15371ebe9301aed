// Command lockbench drives the synchronization primitives the way the
// machine's benchmark applications do: a fixed set of cores is spun up,
// phased by a barrier, and hammers a shared structure while the driver
// checks the run's invariants and reports throughput.
//
// Benchmarks:
//
//	counter    every core increments one shared counter under one lock;
//	           the final value must be cores x iters exactly
//	histogram  randomly drawn bins, one lock per bin
//	queue      half the cores produce, half consume, on any queue form;
//	           dequeued + resident must equal produced
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/coremesh/go-coresync/amo"
	"github.com/coremesh/go-coresync/cores"
	"github.com/coremesh/go-coresync/lrwait"
	"github.com/coremesh/go-coresync/mcs"
	"github.com/coremesh/go-coresync/queue"
	"github.com/coremesh/go-coresync/spin"
)

var (
	coreCount = flag.Int("cores", 16, "number of cores (worker goroutines)")
	iters     = flag.Int("iters", 10000, "operations per core")
	bins      = flag.Int("bins", 32, "histogram bins (histogram only)")
	bench     = flag.String("bench", "counter", "benchmark: counter, histogram, queue")
	lockKind  = flag.String("lock", "amo", "lock: amo, lrsc, mcs, lrwait")
	queueKind = flag.String("queue", "twolock", "queue: twolock, ms, lrsc")
	policy    = flag.String("backoff", "fixed", "spinlock backoff: none, fixed, scaled")
	base      = flag.Uint32("base", 16, "backoff base cycles")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lockbench:", err)
		os.Exit(1)
	}
}

func run() error {
	if *coreCount <= 0 || *iters <= 0 {
		return fmt.Errorf("cores and iters must be positive")
	}
	switch *bench {
	case "counter":
		return runCounter()
	case "histogram":
		return runHistogram()
	case "queue":
		return runQueue()
	default:
		return fmt.Errorf("unknown benchmark %q", *bench)
	}
}

func backoff() (spin.Backoff, error) {
	switch *policy {
	case "none":
		return spin.Backoff{Policy: spin.None}, nil
	case "fixed":
		return spin.Backoff{Policy: spin.Fixed, Base: *base}, nil
	case "scaled":
		return spin.Backoff{Policy: spin.Scaled, Base: *base}, nil
	default:
		return spin.Backoff{}, fmt.Errorf("unknown backoff policy %q", *policy)
	}
}

// perCoreLock unifies the single-word mutexes, which ignore core
// identity, with the queue locks, which acquire through a per-core node.
type perCoreLock interface {
	Lock(id int)
	Unlock(id int)
}

type plainLock struct{ m spin.Mutex }

func (l plainLock) Lock(int)   { l.m.Lock() }
func (l plainLock) Unlock(int) { l.m.Unlock() }

type mcsLock struct {
	d *mcs.Domain
	l *mcs.Lock
}

func (l mcsLock) Lock(id int)   { l.l.Lock(l.d.Node(id)) }
func (l mcsLock) Unlock(id int) { l.l.Unlock(l.d.Node(id)) }

type lrwaitLock struct {
	d *lrwait.Domain
	l *lrwait.Lock
}

func (l lrwaitLock) Lock(id int)   { l.l.Lock(l.d.Node(id)) }
func (l lrwaitLock) Unlock(id int) { l.l.Unlock(l.d.Node(id)) }

// newLocks builds n independent locks of the selected kind over one
// domain; the queue locks share their per-core nodes, so a core may hold
// at most one of them at a time, which every benchmark here respects.
func newLocks(c *cores.Domain, n int) ([]perCoreLock, error) {
	locks := make([]perCoreLock, n)
	switch *lockKind {
	case "amo":
		b, err := backoff()
		if err != nil {
			return nil, err
		}
		for i := range locks {
			locks[i] = plainLock{m: spin.NewSwapMutex(b)}
		}
	case "lrsc":
		b, err := backoff()
		if err != nil {
			return nil, err
		}
		for i := range locks {
			locks[i] = plainLock{m: spin.NewLRMutex(b)}
		}
	case "mcs":
		d := mcs.NewDomain(c.Count())
		for i := range locks {
			locks[i] = mcsLock{d: d, l: d.NewLock()}
		}
	case "lrwait":
		d := lrwait.NewDomain(c)
		for i := range locks {
			locks[i] = lrwaitLock{d: d, l: d.NewLock()}
		}
	default:
		return nil, fmt.Errorf("unknown lock kind %q", *lockKind)
	}
	return locks, nil
}

// spawn runs body on every core, separated from setup by one barrier
// phase, and returns the measured wall time of the work phase.
func spawn(c *cores.Domain, body func(id int)) time.Duration {
	b := cores.NewBarrier(c.Count() + 1)
	done := make(chan struct{})
	for id := 0; id < c.Count(); id++ {
		go func(id int) {
			b.Wait() // line up for a synchronized start
			body(id)
			done <- struct{}{}
		}(id)
	}
	b.Wait()
	start := time.Now()
	for i := 0; i < c.Count(); i++ {
		<-done
	}
	return time.Since(start)
}

func report(name string, ops int, d time.Duration) {
	fmt.Printf("%s\t%s=%s\tcores=%d\tops=%d\telapsed=%v\tops/sec=%.0f\n",
		name, benchKnob(), benchKnobValue(), *coreCount, ops, d,
		float64(ops)/d.Seconds())
}

func benchKnob() string {
	if *bench == "queue" {
		return "queue"
	}
	return "lock"
}

func benchKnobValue() string {
	if *bench == "queue" {
		return *queueKind
	}
	return *lockKind
}

func runCounter() error {
	c := cores.NewDomain(*coreCount)
	locks, err := newLocks(c, 1)
	if err != nil {
		return err
	}
	lock := locks[0]

	counter := 0
	elapsed := spawn(c, func(id int) {
		for i := 0; i < *iters; i++ {
			lock.Lock(id)
			counter++
			lock.Unlock(id)
		}
	})

	total := *coreCount * *iters
	if counter != total {
		return fmt.Errorf("lost updates: counter=%d want=%d", counter, total)
	}
	report("counter", total, elapsed)
	return nil
}

func runHistogram() error {
	if *bins <= 0 {
		return fmt.Errorf("bins must be positive")
	}
	c := cores.NewDomain(*coreCount)
	locks, err := newLocks(c, *bins)
	if err != nil {
		return err
	}

	hist := make([]uint64, *bins)
	elapsed := spawn(c, func(id int) {
		lfsr := uint32(id)*42 + 1
		for i := 0; i < *iters; i++ {
			lfsr ^= lfsr >> 7
			lfsr ^= lfsr << 9
			lfsr ^= lfsr >> 13
			bin := int(lfsr % uint32(*bins))
			locks[bin].Lock(id)
			hist[bin]++
			locks[bin].Unlock(id)
		}
	})

	var sum uint64
	for _, v := range hist {
		sum += v
	}
	total := uint64(*coreCount) * uint64(*iters)
	if sum != total {
		return fmt.Errorf("lost updates: histogram sum=%d want=%d", sum, total)
	}
	report("histogram", int(total), elapsed)
	return nil
}

func newQueue() (queue.Queue, error) {
	pool := queue.NewPool((*coreCount)*(*iters) + 1)
	switch *queueKind {
	case "twolock":
		b, err := backoff()
		if err != nil {
			return nil, err
		}
		return queue.NewTwoLockQueue(pool, spin.NewSwapMutex(b), spin.NewSwapMutex(b))
	case "ms":
		return queue.NewMSQueue(pool)
	case "lrsc":
		return queue.NewLRQueue(pool)
	default:
		return nil, fmt.Errorf("unknown queue kind %q", *queueKind)
	}
}

func runQueue() error {
	if *coreCount < 2 {
		return fmt.Errorf("queue benchmark needs at least 2 cores")
	}
	q, err := newQueue()
	if err != nil {
		return err
	}
	c := cores.NewDomain(*coreCount)
	producers := *coreCount / 2

	var doneProducers amo.Word
	dequeued := make([]int, *coreCount)
	enqueued := make([]int, *coreCount)
	elapsed := spawn(c, func(id int) {
		if id < producers {
			defer doneProducers.Add(1)
			for i := 0; i < *iters; i++ {
				if err := q.Enqueue(uint32(id*(*iters) + i)); err != nil {
					return // pool exhausted; the rest of the quota is skipped
				}
				enqueued[id]++
			}
			return
		}
		for dequeued[id] < *iters {
			if _, ok := q.Dequeue(); ok {
				dequeued[id]++
			} else if doneProducers.Load() == uint32(producers) {
				// Nothing more can arrive; one final look for stragglers
				// that landed between the failed dequeue and the check.
				if _, ok := q.Dequeue(); ok {
					dequeued[id]++
					continue
				}
				return
			}
		}
	})

	in, out := 0, 0
	for _, n := range enqueued {
		in += n
	}
	for _, n := range dequeued {
		out += n
	}
	for { // residue
		if _, ok := q.Dequeue(); !ok {
			break
		}
		out++
	}
	if in != out {
		return fmt.Errorf("conservation violated: enqueued=%d dequeued+resident=%d", in, out)
	}
	report("queue", in, elapsed)
	return nil
}
