package client

import (
	"context"
	"log"
	"time"
)

// Poller fires the room-list refresh immediately on Run and then on a
// fixed interval until stopped. Refresh failures never stop the loop;
// the refresh callback is expected to absorb them.
type Poller struct {
	interval time.Duration
	refresh  func(context.Context)
	log      *log.Logger
	stop     chan struct{}
	done     chan struct{}
}

func newPoller(interval time.Duration, refresh func(context.Context), logger *log.Logger) *Poller {
	return &Poller{
		interval: interval,
		refresh:  refresh,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) Run() {
	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.refresh(context.Background())

		for {
			select {
			case <-ticker.C:
				p.refresh(context.Background())
			case <-p.stop:
				p.log.Println("poll loop stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight refresh, if any, to
// finish.
func (p *Poller) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}
