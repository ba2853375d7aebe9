package testutil

import (
	"sync"

	"github.com/photodiary/server/internal/models"
)

// RecordingNotifier collects every notice it receives
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []models.Notice
}

func (n *RecordingNotifier) Notify(notice models.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

// Notices returns a copy of the recorded notices
func (n *RecordingNotifier) Notices() []models.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notice(nil), n.notices...)
}

// Messages returns just the notice messages
func (n *RecordingNotifier) Messages() []string {
	var out []string
	for _, notice := range n.Notices() {
		out = append(out, notice.Message)
	}
	return out
}
