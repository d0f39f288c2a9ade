package tidelog

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletedTask(t *testing.T) {
	task := CompletedTask()

	require.True(t, task.IsComplete())
	task.Wait()
}

func TestNilTaskHandleIsComplete(t *testing.T) {
	var task *TaskHandle

	require.True(t, task.IsComplete())
	task.Wait()
}

func TestScheduleRunsAfterDependencies(t *testing.T) {
	var order atomic.Int32

	gate := make(chan struct{})

	first := Schedule(func() {
		<-gate
		order.CompareAndSwap(0, 1)
	})

	second := Schedule(func() {
		order.CompareAndSwap(1, 2)
	}, first)

	require.False(t, second.IsComplete())

	close(gate)
	second.Wait()

	assert.Equal(t, int32(2), order.Load())
	assert.True(t, first.IsComplete())
}

func TestScheduleNilDependency(t *testing.T) {
	task := Schedule(func() {}, nil, CompletedTask())
	task.Wait()
}

func TestCombineWaitsForAll(t *testing.T) {
	gates := [3]chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}

	var done atomic.Int32

	handles := make([]*TaskHandle, 0, len(gates))

	for i := range gates {
		gate := gates[i]
		handles = append(handles, Schedule(func() {
			<-gate
			done.Add(1)
		}))
	}

	combined := Combine(handles...)

	close(gates[0])
	close(gates[1])

	require.False(t, combined.IsComplete())

	close(gates[2])
	combined.Wait()

	assert.Equal(t, int32(3), done.Load())
}

func TestCombineEmptyIsComplete(t *testing.T) {
	require.True(t, Combine().IsComplete())
}

func TestSchedulePanicStillCompletes(t *testing.T) {
	task := Schedule(func() { panic("sink exploded") })

	task.Wait()

	follow := Schedule(func() {}, task)
	follow.Wait()
	require.True(t, follow.IsComplete())
}
