package engine

import (
	"sync"

	"github.com/dukex/sfcflow/pkg/models"
)

// ChangeKind tells subscribers what caused an update.
type ChangeKind string

const (
	ChangeRun      ChangeKind = "run"
	ChangeStep     ChangeKind = "step"
	ChangeProgress ChangeKind = "progress"
	ChangeReset    ChangeKind = "reset"
)

// Change describes a single status change. StepID is empty for run level changes.
type Change struct {
	Kind   ChangeKind
	StepID string
}

// Update pairs a change with the snapshot taken right after it.
type Update struct {
	Snapshot models.Snapshot
	Change   Change
}

type subscription struct {
	graphID string
	updates chan Update
}

// Publisher keeps the latest snapshot of every graph and fans updates out to
// subscribers. Slow subscribers lose their oldest queued update rather than
// blocking the run that publishes.
type Publisher struct {
	mu            sync.RWMutex
	latest        map[string]models.Snapshot
	subscriptions map[int]*subscription
	nextID        int
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		latest:        make(map[string]models.Snapshot),
		subscriptions: make(map[int]*subscription),
	}
}

// Publish records the snapshot as the latest for its graph and notifies subscribers.
func (p *Publisher) Publish(update Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest[update.Snapshot.GraphID] = update.Snapshot

	for _, sub := range p.subscriptions {
		if sub.graphID != "" && sub.graphID != update.Snapshot.GraphID {
			continue
		}

		deliver(sub.updates, update)
	}
}

func deliver(updates chan Update, update Update) {
	select {
	case updates <- update:
		return
	default:
	}

	select {
	case <-updates:
	default:
	}

	select {
	case updates <- update:
	default:
	}
}

// Latest returns the most recent snapshot of a graph, or a pending snapshot
// when nothing was published for it.
func (p *Publisher) Latest(graphID string) models.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot, ok := p.latest[graphID]
	if !ok {
		return models.PendingSnapshot(graphID)
	}

	return snapshot
}

// Reset publishes a pending snapshot for a graph.
func (p *Publisher) Reset(graphID string) models.Snapshot {
	snapshot := models.PendingSnapshot(graphID)
	p.Publish(Update{Snapshot: snapshot, Change: Change{Kind: ChangeReset}})

	return snapshot
}

// Subscribe returns a channel receiving the updates of graphID, or of every
// graph when graphID is empty. The returned function cancels the subscription
// and closes the channel.
func (p *Publisher) Subscribe(graphID string, buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++

	sub := &subscription{graphID: graphID, updates: make(chan Update, buffer)}
	p.subscriptions[id] = sub

	var once sync.Once

	return sub.updates, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()

			delete(p.subscriptions, id)
			close(sub.updates)
		})
	}
}
