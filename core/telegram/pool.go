package telegram

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/dispatch"
	"github.com/m3rciful/botflow/core/update"
)

// pool dispatches updates on a fixed set of workers. Submit blocks while
// every worker is busy and the queue is full.
type pool struct {
	app  *dispatch.App
	jobs chan tele.Update
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newPool(ctx context.Context, app *dispatch.App, workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	p := &pool{
		app:  app,
		jobs: make(chan tele.Update, workers),
		stop: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
	return p
}

// submit queues u. It reports false once the pool is closing.
func (p *pool) submit(u tele.Update) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	select {
	case p.jobs <- u:
		return true
	case <-p.stop:
		return false
	}
}

// filter feeds the pool from a MiddlewarePoller. Updates never reach
// telebot's own handler table.
func (p *pool) filter(u *tele.Update) bool {
	p.submit(*u)
	return false
}

// close stops accepting updates and waits for the queued ones.
func (p *pool) close() {
	p.once.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

func (p *pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case u := <-p.jobs:
			p.app.Dispatch(ctx, update.New(u))
		case <-p.stop:
			p.drain(ctx)
			return
		}
	}
}

func (p *pool) drain(ctx context.Context) {
	for {
		select {
		case u := <-p.jobs:
			p.app.Dispatch(ctx, update.New(u))
		default:
			return
		}
	}
}
