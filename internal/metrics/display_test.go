package metrics

import (
	"sync"
	"testing"
	"time"
)

// recordDisplay collects everything shown, for assertions from the test
// goroutine.
type recordDisplay struct {
	mu        sync.Mutex
	statuses  []Status
	snapshots []Snapshot
	statusCh  chan Status
	renderCh  chan Snapshot
}

func newRecordDisplay() *recordDisplay {
	return &recordDisplay{
		statusCh: make(chan Status, 256),
		renderCh: make(chan Snapshot, 64),
	}
}

func (d *recordDisplay) SetStatus(s Status) {
	d.mu.Lock()
	d.statuses = append(d.statuses, s)
	d.mu.Unlock()
	select {
	case d.statusCh <- s:
	default:
	}
}

func (d *recordDisplay) Render(s Snapshot) {
	d.mu.Lock()
	d.snapshots = append(d.snapshots, s)
	d.mu.Unlock()
	select {
	case d.renderCh <- s:
	default:
	}
}

func (d *recordDisplay) waitStatus(t *testing.T, want Status) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-d.statusCh:
			if s == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for status %+v", want)
		}
	}
}

func (d *recordDisplay) waitRender(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-d.renderCh:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a render")
		return Snapshot{}
	}
}

func (d *recordDisplay) has(want Status) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (d *recordDisplay) renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.snapshots)
}
