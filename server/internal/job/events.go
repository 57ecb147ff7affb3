package job

import (
	"log/slog"
)

func Topic(id string) string { return "job:" + id }

type subscriber struct {
	events   chan Event
	finished chan struct{}
}

// Subscription receives the events of one job. Events is lossy for slow
// readers; Finished is closed on the terminal event whether or not that
// event fit in Events.
type Subscription struct {
	Events   <-chan Event
	Finished <-chan struct{}

	job *Job
	key int
}

// Close stops the delivery of events. It is safe to call more than once.
func (s *Subscription) Close() {
	s.job.subMu.Lock()
	delete(s.job.subs, s.key)
	s.job.subMu.Unlock()
}

// Subscribe registers a reader with room for buffer pending events.
func (j *Job) Subscribe(buffer int) *Subscription {
	s := &subscriber{
		events:   make(chan Event, buffer),
		finished: make(chan struct{}),
	}

	j.subMu.Lock()
	defer j.subMu.Unlock()

	if j.terminal {
		close(s.finished)
	}

	key := j.nextSub
	j.nextSub++
	j.subs[key] = s

	return &Subscription{Events: s.events, Finished: s.finished, job: j, key: key}
}

// dispatch is the only handler of the job topic on the bus.
func (j *Job) dispatch(e Event) {
	j.subMu.Lock()
	defer j.subMu.Unlock()

	terminal := e.Terminal() && !j.terminal
	if terminal {
		j.terminal = true
	}

	for key, s := range j.subs {
		select {
		case s.events <- e:
		default:
			slog.Debug("subscriber lagging, event dropped",
				slog.String("job", j.Id),
				slog.Int("subscriber", key),
				slog.String("type", string(e.Type)),
			)
		}
		if terminal {
			close(s.finished)
		}
	}
}

// Detach removes the job from the bus and drops all of its subscribers,
// finishing their streams.
func (j *Job) Detach() {
	if j.bus != nil {
		if err := j.bus.Unsubscribe(Topic(j.Id), j.dispatch); err != nil {
			slog.Debug("job was not on the bus", slog.String("job", j.Id), slog.Any("err", err))
		}
	}

	j.subMu.Lock()
	defer j.subMu.Unlock()

	if !j.terminal {
		for _, s := range j.subs {
			close(s.finished)
		}
		j.terminal = true
	}
	clear(j.subs)
}

// Subscribers reports how many readers are attached.
func (j *Job) Subscribers() int {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	return len(j.subs)
}
