package report

import "context"

// Task：一次远端操作的待定结果
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newTask[T any]() *Task[T] { return &Task[T]{done: make(chan struct{})} }

// failed：返回已完成的失败任务
func failed[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.finish(zero, err)
	return t
}

func (t *Task[T]) finish(v T, err error) {
	t.val, t.err = v, err
	close(t.done)
}

// Done：结果写入存储后关闭
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait：等待任务完成或 ctx 结束
// 约束：取消 ctx 不会取消远端操作
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
