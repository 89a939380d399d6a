package starlark

import (
	"log/slog"
	"runtime"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/sync/errgroup"
)

// ThreadPool recycles Starlark threads between node evaluations.
type ThreadPool struct {
	mu     sync.Mutex
	idle   []*starlark.Thread
	max    int
	logger *slog.Logger
}

// NewThreadPool creates a pool keeping at most size idle threads; size <= 0
// means GOMAXPROCS. print() from expressions is logged at debug level.
func NewThreadPool(size int, logger *slog.Logger) *ThreadPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ThreadPool{max: size, logger: logger}
}

// Get returns an idle thread or a new one, named after the node it evaluates.
func (p *ThreadPool) Get(node string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.idle); n > 0 {
		thread := p.idle[n-1]
		p.idle = p.idle[:n-1]
		thread.Name = node
		return thread
	}

	logger := p.logger
	return &starlark.Thread{
		Name: node,
		Print: func(thread *starlark.Thread, msg string) {
			logger.Debug(msg, "node", thread.Name)
		},
	}
}

// Put hands a thread back; it is dropped when the pool is full.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) < p.max {
		thread.Name = ""
		p.idle = append(p.idle, thread)
	}
}

// Idle returns the number of threads waiting for reuse.
func (p *ThreadPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// ParallelExecutor evaluates one expression per node concurrently.
type ParallelExecutor struct {
	pool        *ThreadPool
	predeclared starlark.StringDict
}

// NewParallelExecutor creates an executor running at most concurrency
// evaluations at a time (GOMAXPROCS when <= 0).
func NewParallelExecutor(concurrency int, predeclared starlark.StringDict, logger *slog.Logger) *ParallelExecutor {
	return &ParallelExecutor{
		pool:        NewThreadPool(concurrency, logger),
		predeclared: predeclared,
	}
}

// Execute runs the tasks and returns their results in task order. A failing
// task does not stop the others.
func (e *ParallelExecutor) Execute(tasks []EvalTask) []EvalResult {
	results := make([]EvalResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(e.pool.max)

	for i, task := range tasks {
		g.Go(func() error {
			thread := e.pool.Get(task.Name)
			defer e.pool.Put(thread)

			value, err := evalExpr(thread, task.Name, task.Expr, merge(e.predeclared, task.Globals))
			results[i] = EvalResult{Name: task.Name, Value: value, Error: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// merge returns base overlaid with top.
func merge(base, top starlark.StringDict) starlark.StringDict {
	env := make(starlark.StringDict, len(base)+len(top))
	for k, v := range base {
		env[k] = v
	}
	for k, v := range top {
		env[k] = v
	}
	return env
}

func evalExpr(thread *starlark.Thread, name, expr string, env starlark.StringDict) (starlark.Value, error) {
	return starlark.EvalOptions(&syntax.FileOptions{}, thread, name, expr, env)
}

// EvalTask is one expression to evaluate at a node.
type EvalTask struct {
	Name    string // node name, used as the thread name in errors
	Expr    string
	Globals starlark.StringDict // node attributes and helpers
}

// EvalResult is the outcome of an EvalTask.
type EvalResult struct {
	Name  string
	Value starlark.Value
	Error error
}
