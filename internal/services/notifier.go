package services

import (
	"context"
	"sort"
	"sync"
)

// Notifier delivers a short text to a user identified by its Telegram id.
//
// Delivery is a single best-effort attempt. Implementations log their own
// failures and report them through the return value. They never return an
// error to the caller.
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) bool
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, telegramID int64, text string) bool

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, telegramID int64, text string) bool {
	return f(ctx, telegramID, text)
}

// nopNotifier drops every message.
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, int64, string) bool { return false }

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// userLocks serializes pairing and task mutations per user inside the
// process. Multiple keys are always acquired in ascending order so two
// callers locking the same pair cannot deadlock.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the locks for every distinct key and returns the release func.
func (l *userLocks) Lock(keys ...int64) (unlock func()) {
	uniq := make([]int64, 0, len(keys))
	seen := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	entries := make([]*lockEntry, len(uniq))
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*lockEntry)
	}
	for i, k := range uniq {
		e := l.locks[k]
		if e == nil {
			e = &lockEntry{}
			l.locks[k] = e
		}
		e.refs++
		entries[i] = e
	}
	l.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}
	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, k := range uniq {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, k)
			}
		}
		l.mu.Unlock()
	}
}
