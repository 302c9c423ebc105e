package postgres

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// txHooks queues work raised inside transactions opened through transaction
// and runs it once the transaction commits. Rolled back work is dropped.
type txHooks struct {
	mu      sync.Mutex
	pending map[*gorm.DB][]func()
}

func newTxHooks() *txHooks {
	return &txHooks{pending: make(map[*gorm.DB][]func())}
}

// afterCommit runs fn immediately for pool writes and for transactions that
// were not opened through transaction; otherwise it waits for the commit.
func (h *txHooks) afterCommit(tx *gorm.DB, fn func()) {
	if tx != nil {
		h.mu.Lock()
		if queued, ok := h.pending[tx]; ok {
			h.pending[tx] = append(queued, fn)
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
	}
	fn()
}

func (h *txHooks) transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var committed []func()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h.mu.Lock()
		h.pending[tx] = nil
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			committed = h.pending[tx]
			delete(h.pending, tx)
			h.mu.Unlock()
		}()
		return fn(tx)
	})
	if err != nil {
		return err
	}

	for _, run := range committed {
		run()
	}
	return nil
}
