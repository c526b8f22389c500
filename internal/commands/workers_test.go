package commands

import (
	"sync"
	"testing"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

func TestTaskTypeStrings(t *testing.T) {
	cases := map[TaskType]string{
		TaskTextureLoad:   "texture-load",
		TaskMeshLoad:      "mesh-load",
		TaskMaterialLoad:  "material-load",
		TaskCommandRecord: "command-record",
		TaskType(99):      "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("TaskType(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestTaskQueueFIFOOrder(t *testing.T) {
	q := newTaskQueue()
	q.push(Task{Type: TaskTextureLoad})
	q.push(Task{Type: TaskMeshLoad})
	q.push(Task{Type: TaskMaterialLoad})

	for _, want := range []TaskType{TaskTextureLoad, TaskMeshLoad, TaskMaterialLoad} {
		task, ok := q.pop()
		if !ok {
			t.Fatalf("pop() returned ok=false, want a task of type %s", want)
		}
		if task.Type != want {
			t.Fatalf("pop() = %s, want %s", task.Type, want)
		}
	}
}

func TestTaskQueuePopBlocksUntilPush(t *testing.T) {
	q := newTaskQueue()
	done := make(chan Task, 1)
	go func() {
		task, ok := q.pop()
		if !ok {
			return
		}
		done <- task
	}()

	select {
	case <-done:
		t.Fatalf("pop() returned before any task was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(Task{Type: TaskCommandRecord})
	select {
	case task := <-done:
		if task.Type != TaskCommandRecord {
			t.Fatalf("pop() = %s, want command-record", task.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("pop() never woke up after push")
	}
}

func TestTaskQueueCloseUnblocksWaitersWithNothingLeft(t *testing.T) {
	q := newTaskQueue()
	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := q.pop()
			results[i] = ok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	q.close()
	wg.Wait()

	for i, ok := range results {
		if ok {
			t.Errorf("waiter %d got ok=true after close() with an empty queue, want false", i)
		}
	}
}

func TestTaskQueuePushAfterCloseIsDropped(t *testing.T) {
	q := newTaskQueue()
	q.close()
	q.push(Task{Type: TaskMeshLoad})
	if got := q.len(); got != 0 {
		t.Fatalf("len() = %d after push on a closed queue, want 0", got)
	}
}

func TestThreadCommandPoolRejectsNonOwningCaller(t *testing.T) {
	p := &ThreadCommandPool{ownerIdx: 2}
	_, err := p.RecordSecondary(3, vk.CommandBufferInheritanceInfo{}, func(cmd vk.CommandBuffer) error { return nil })
	if err != errNotOwner {
		t.Fatalf("RecordSecondary from worker 3 on a pool owned by worker 2 returned %v, want errNotOwner", err)
	}
}
