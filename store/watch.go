package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Sentinel file names. Touching them in the data directory triggers the
// named operation on the next watch tick.
const (
	SentinelUpdate = "update"
	SentinelReload = "reload"
)

// debounce window for coalescing sentinel touches into one operation
const watchSettle = 250 * time.Millisecond

// Watch blocks watching the data directory for sentinel touches until ctx
// is done. Touches arriving within one settle window coalesce; when both
// sentinels fire in the same window, reload wins and the update is
// subsumed by it.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return err
	}

	var pendingUpdate, pendingReload bool
	var settle *time.Timer
	var settleC <-chan time.Time

	arm := func() {
		if settle == nil {
			settle = time.NewTimer(watchSettle)
			settleC = settle.C
			return
		}
		if !settle.Stop() {
			select {
			case <-settle.C:
			default:
			}
		}
		settle.Reset(watchSettle)
		settleC = settle.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Chmod) {
				continue
			}
			switch filepath.Base(ev.Name) {
			case SentinelUpdate:
				pendingUpdate = true
				arm()
			case SentinelReload:
				pendingReload = true
				arm()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("data directory watch error")
		case <-settleC:
			settleC = nil
			reload, update := pendingReload, pendingUpdate
			pendingReload, pendingUpdate = false, false
			switch {
			case reload:
				if err := s.Load(); err != nil {
					s.log.WithError(err).Error("reload failed, keeping previous snapshot")
				} else {
					s.log.Info("store reloaded")
				}
			case update:
				if err := s.Update(); err != nil {
					s.log.WithError(err).Error("update failed, keeping previous snapshot")
				} else {
					s.log.Info("store updated")
				}
			}
		}
	}
}
