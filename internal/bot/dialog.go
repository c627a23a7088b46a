package bot

import (
	"sync"
	"time"
)

type dialogStep int

const (
	stepTitle dialogStep = iota + 1
	stepDescription
	stepInviteCode
)

// dialog is the in-progress /newtask or code-entry conversation of one user.
type dialog struct {
	step    dialogStep
	title   string
	touched time.Time
}

// dialogs holds per-user dialog state in memory. Entries idle longer than ttl
// are treated as absent and swept from set at most once per ttl. State is
// lost on restart.
type dialogs struct {
	mu    sync.Mutex
	m     map[int64]dialog
	ttl   time.Duration
	now   func() time.Time
	swept time.Time
}

func newDialogs(ttl time.Duration) *dialogs {
	return &dialogs{m: make(map[int64]dialog), ttl: ttl, now: time.Now}
}

func (d *dialogs) get(userID int64) (dialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.m[userID]
	if !ok {
		return dialog{}, false
	}
	if d.ttl > 0 && d.now().Sub(dl.touched) > d.ttl {
		delete(d.m, userID)
		return dialog{}, false
	}
	return dl, true
}

func (d *dialogs) set(userID int64, dl dialog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if d.ttl > 0 && now.Sub(d.swept) >= d.ttl {
		d.sweepLocked(now)
	}
	dl.touched = now
	d.m[userID] = dl
}

// sweep drops every stale entry and returns how many were removed.
func (d *dialogs) sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sweepLocked(d.now())
}

func (d *dialogs) sweepLocked(now time.Time) int {
	d.swept = now
	if d.ttl <= 0 {
		return 0
	}
	n := 0
	for id, dl := range d.m {
		if now.Sub(dl.touched) > d.ttl {
			delete(d.m, id)
			n++
		}
	}
	return n
}

func (d *dialogs) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.m)
}

// clear drops the user's dialog and reports whether one was active.
func (d *dialogs) clear(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.m[userID]
	delete(d.m, userID)
	return ok && (d.ttl <= 0 || d.now().Sub(dl.touched) <= d.ttl)
}
