package gateway

import (
	"FestivalSupport/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout spreads topic broadcasts over a small worker pool so a large room
// never stalls the handler that produced the event. Per-connection order is
// preserved because each client's Send channel is the only write path.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.SafeGo(func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		})
	}
	return f
}

func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}
