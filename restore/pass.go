package restore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/xmeta/backup"
)

// PassReport summarizes a finished pass.
type PassReport struct {
	Restored int
	Failed   int
	// Dropped counts files never started because the pass was cancelled.
	Dropped int
	// Err joins the failures of every file.
	Err error
}

func (pr PassReport) String() string {
	return fmt.Sprintf("restored=%d failed=%d dropped=%d", pr.Restored, pr.Failed, pr.Dropped)
}

// Pass is one run over the backup store.
type Pass struct {
	ID    uuid.UUID
	Query *backup.Query

	mu     sync.Mutex
	state  State
	report PassReport
	done   chan struct{}
}

func newPass(query *backup.Query) *Pass {
	return &Pass{
		ID:    uuid.Must(uuid.NewV7()),
		Query: query,
		state: Scheduled,
		done:  make(chan struct{}),
	}
}

func (p *Pass) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Done is closed once the pass reached Completed or Cancelled.
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pass finished or ctx expires.
func (p *Pass) Wait(ctx context.Context) (PassReport, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.report, nil
	case <-ctx.Done():
		return PassReport{}, ctx.Err()
	}
}

func (p *Pass) setState(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = state
}

func (p *Pass) finish(state State, report PassReport) {
	p.mu.Lock()
	p.state = state
	p.report = report
	p.mu.Unlock()

	close(p.done)
}
