package commands

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/atomics"
	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
	csync "github.com/markusmaurer/cardinal/internal/sync"
)

// TaskType tags what kind of work a Task carries, replacing the original's
// (type, void*, fn) triple with a tagged variant per §9's design notes.
// Grounded on original_source/engine/src/renderer/vulkan_mt.h's
// CardinalMTTaskType enum.
type TaskType int

const (
	TaskTextureLoad TaskType = iota
	TaskMeshLoad
	TaskMaterialLoad
	TaskCommandRecord
)

func (t TaskType) String() string {
	switch t {
	case TaskTextureLoad:
		return "texture-load"
	case TaskMeshLoad:
		return "mesh-load"
	case TaskMaterialLoad:
		return "material-load"
	case TaskCommandRecord:
		return "command-record"
	default:
		return "unknown"
	}
}

// Task is one unit of work a worker goroutine executes. Execute receives the
// index of the worker running it, so a TaskCommandRecord task can fetch that
// worker's own ThreadCommandPool via WorkerPool.Pool. OnDone is the
// completion callback §7 calls out as how worker tasks report success.
type Task struct {
	Type    TaskType
	Execute func(workerIndex int) error
	OnDone  func(success bool)
}

// taskQueue is the §4.13 task queue: a FIFO workers dequeue under a mutex +
// condition variable, mirroring CardinalMTTaskQueue's head/tail/queue_mutex/
// queue_condition translated from an intrusive linked list to a slice.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Task
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *taskQueue) push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, t)
	q.cond.Signal()
}

// pop blocks until a task is available or the queue is closed, returning
// (zero, false) once closed with nothing left to drain.
func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// secondaryBuffersPerThread is K in §4.13: the number of secondary command
// buffers a ThreadCommandPool pre-allocates (default 16).
const secondaryBuffersPerThread = 16

// errNotOwner is returned when a caller presents a worker index other than
// the one a ThreadCommandPool was created for, implementing §5's "a safety
// check aborts operations invoked from a non-owning thread". Go goroutines
// have no stable OS-thread identity to check directly, so ownership is keyed
// on the fixed worker index WorkerPool assigns each goroutine for its
// lifetime instead.
var errNotOwner = errors.New("commands: thread command pool accessed by a non-owning worker")

// ThreadCommandPool is one worker's private primary + secondary command pool
// pair, pre-allocating K secondary buffers up front so recording never
// allocates on the hot path. Grounded on original_source's
// CardinalThreadCommandPool.
type ThreadCommandPool struct {
	ctx       *device.Context
	ownerIdx  int
	primary   *Pool
	secondary *Pool
	buffers   []vk.CommandBuffer
	next      int
}

func newThreadCommandPool(ctx *device.Context, ownerIdx int, familyIndex uint32) (*ThreadCommandPool, error) {
	primary, err := NewPool(ctx, familyIndex)
	if err != nil {
		return nil, fmt.Errorf("commands: worker %d primary pool: %w", ownerIdx, err)
	}
	secondary, err := NewPool(ctx, familyIndex)
	if err != nil {
		primary.Destroy()
		return nil, fmt.Errorf("commands: worker %d secondary pool: %w", ownerIdx, err)
	}

	buffers := make([]vk.CommandBuffer, secondaryBuffersPerThread)
	ret := vk.AllocateCommandBuffers(ctx.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        secondary.handle,
		Level:              vk.CommandBufferLevelSecondary,
		CommandBufferCount: secondaryBuffersPerThread,
	}, buffers)
	if ret != vk.Success {
		primary.Destroy()
		secondary.Destroy()
		return nil, fmt.Errorf("commands: worker %d allocate secondary buffers: result %d", ownerIdx, ret)
	}

	return &ThreadCommandPool{ctx: ctx, ownerIdx: ownerIdx, primary: primary, secondary: secondary, buffers: buffers}, nil
}

// RecordSecondary hands out the pool's next pre-allocated secondary buffer
// (wrapping around once all K are in flight), begins it against inheritance,
// lets record fill it, and ends it. callerIdx must equal the worker index
// this pool was created for; otherwise RecordSecondary returns errNotOwner
// without touching any Vulkan object.
func (p *ThreadCommandPool) RecordSecondary(callerIdx int, inheritance vk.CommandBufferInheritanceInfo, record func(cmd vk.CommandBuffer) error) (vk.CommandBuffer, error) {
	if callerIdx != p.ownerIdx {
		return nil, errNotOwner
	}

	cmd := p.buffers[p.next%len(p.buffers)]
	p.next++

	inheritance.SType = vk.StructureTypeCommandBufferInheritanceInfo
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType:            vk.StructureTypeCommandBufferBeginInfo,
		Flags:            vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit),
		PInheritanceInfo: &inheritance,
	})
	if ret != vk.Success {
		return nil, fmt.Errorf("commands: worker %d begin secondary buffer: result %d", p.ownerIdx, ret)
	}

	if err := record(cmd); err != nil {
		return nil, fmt.Errorf("commands: worker %d record secondary buffer: %w", p.ownerIdx, err)
	}

	if ret := vk.EndCommandBuffer(cmd); ret != vk.Success {
		return nil, fmt.Errorf("commands: worker %d end secondary buffer: result %d", p.ownerIdx, ret)
	}
	return cmd, nil
}

// Reset recycles this pool's primary and secondary pools for the next batch
// of recording, matching the per-frame Reset convention the rest of this
// package follows.
func (p *ThreadCommandPool) Reset() error {
	if err := p.primary.Reset(); err != nil {
		return err
	}
	if err := p.secondary.Reset(); err != nil {
		return err
	}
	p.next = 0
	return nil
}

func (p *ThreadCommandPool) Destroy() {
	if len(p.buffers) > 0 {
		vk.FreeCommandBuffers(p.ctx.Device, p.secondary.handle, uint32(len(p.buffers)), p.buffers)
	}
	p.primary.Destroy()
	p.secondary.Destroy()
}

// defaultMaxWorkers caps worker count per §4.13's "capped (e.g., 8)".
const defaultMaxWorkers = 8

// WorkerPool is component C13's multi-threaded command subsystem: a bounded
// set of worker goroutines, each owning one ThreadCommandPool, draining a
// shared task queue of {texture-load, mesh-load, material-load,
// command-record} work. Grounded on original_source's vulkan_mt.h
// (CardinalMTSubsystem), translated from OS threads keyed by pthread_t to
// goroutines keyed by a fixed worker index, since Go has no stable per-thread
// identity to hang a pool off of.
type WorkerPool struct {
	ctx *device.Context
	log *logging.Logger

	queue *taskQueue
	ready *csync.TimelinePool
	pools []*ThreadCommandPool
	wg    sync.WaitGroup

	tasksRun atomics.Counter64
}

// NewWorkerPool spawns workerCount workers (runtime.NumCPU() if
// workerCount <= 0; either way capped at defaultMaxWorkers), each with its own
// ThreadCommandPool against familyIndex, and starts them draining the task
// queue immediately.
func NewWorkerPool(ctx *device.Context, familyIndex uint32, workerCount int, log *logging.Logger) (*WorkerPool, error) {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > defaultMaxWorkers {
		workerCount = defaultMaxWorkers
	}
	if workerCount < 1 {
		workerCount = 1
	}

	ready, err := csync.NewTimelinePool(ctx, workerCount, workerCount*4, log)
	if err != nil {
		return nil, fmt.Errorf("commands: worker pool completion cache: %w", err)
	}

	wp := &WorkerPool{ctx: ctx, log: log, queue: newTaskQueue(), ready: ready}
	for i := 0; i < workerCount; i++ {
		pool, err := newThreadCommandPool(ctx, i, familyIndex)
		if err != nil {
			wp.Close()
			return nil, err
		}
		wp.pools = append(wp.pools, pool)
	}

	for i := range wp.pools {
		wp.wg.Add(1)
		go wp.run(i)
	}
	return wp, nil
}

func (wp *WorkerPool) run(workerIndex int) {
	defer wp.wg.Done()
	for {
		task, ok := wp.queue.pop()
		if !ok {
			return
		}
		wp.tasksRun.Inc()
		err := task.Execute(workerIndex)
		if err != nil {
			wp.log.Warnf("commands: worker %d task %s failed: %v", workerIndex, task.Type, err)
		}
		if task.OnDone != nil {
			task.OnDone(err == nil)
		}
	}
}

// Submit enqueues t for whichever worker dequeues it next.
func (wp *WorkerPool) Submit(t Task) { wp.queue.push(t) }

// Pending reports how many tasks are queued but not yet picked up by a
// worker.
func (wp *WorkerPool) Pending() int { return wp.queue.len() }

// TasksRun is the cumulative count of tasks a worker has executed (success or
// failure).
func (wp *WorkerPool) TasksRun() int64 { return wp.tasksRun.Load() }

// Pool returns the ThreadCommandPool owned by workerIndex, for a
// TaskCommandRecord task's Execute closure to record into.
func (wp *WorkerPool) Pool(workerIndex int) *ThreadCommandPool { return wp.pools[workerIndex] }

// SignalRecordingDone host-signals a freshly allocated pooled semaphore to
// value 1, implementing §5's "secondary command buffers produced by workers
// are only spliced after their recording ends": call this once a worker's
// RecordSecondary returns, then have the splicing thread block on the result
// via Confirm before calling vk.CmdExecuteCommands.
func (wp *WorkerPool) SignalRecordingDone() (csync.TimelineAllocation, error) {
	alloc, err := wp.ready.Allocate()
	if err != nil {
		return csync.TimelineAllocation{}, fmt.Errorf("commands: allocate completion semaphore: %w", err)
	}
	ret := vk.SignalSemaphore(wp.ctx.Device, &vk.SemaphoreSignalInfo{
		SType:     vk.StructureTypeSemaphoreSignalInfo,
		Semaphore: alloc.Semaphore,
		Value:     1,
	})
	if ret != vk.Success {
		wp.ready.Deallocate(alloc, 0)
		return csync.TimelineAllocation{}, fmt.Errorf("commands: signal completion semaphore: result %d", ret)
	}
	return alloc, nil
}

// Confirm blocks until alloc's semaphore reaches the value SignalRecordingDone
// signalled, then returns it to the pool for reuse. Call immediately before
// splicing the matching secondary buffer into a primary one.
func (wp *WorkerPool) Confirm(alloc csync.TimelineAllocation, timeoutNs uint64) error {
	ret := vk.WaitSemaphores(wp.ctx.Device, &vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{alloc.Semaphore},
		PValues:        []uint64{1},
	}, timeoutNs)
	wp.ready.Deallocate(alloc, 1)
	if ret != vk.Success {
		return fmt.Errorf("commands: wait completion semaphore: result %d", ret)
	}
	return nil
}

// Splice executes buffers, in order, into primary via vk.CmdExecuteCommands —
// the deterministic-order splice §8 scenario 6 exercises. Callers must have
// already Confirmed every buffer in the slice.
func Splice(primary vk.CommandBuffer, buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.CmdExecuteCommands(primary, uint32(len(buffers)), buffers)
}

// Close stops accepting new work, waits for every in-flight task to finish,
// and destroys every worker's ThreadCommandPool and the shared completion
// semaphore cache.
func (wp *WorkerPool) Close() {
	wp.queue.close()
	wp.wg.Wait()
	for _, p := range wp.pools {
		p.Destroy()
	}
	if wp.ready != nil {
		wp.ready.Destroy()
	}
}
