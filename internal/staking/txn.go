package staking

import "context"

// txn journals the effects of one operation so that a failing unit of work
// can be undone in reverse order. Events are buffered until the outermost
// operation commits.
type txn struct {
	undo   []func()
	events []Event
}

type savepoint struct {
	undo   int
	events int
}

func (t *txn) savepoint() savepoint {
	return savepoint{undo: len(t.undo), events: len(t.events)}
}

func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) emit(ev Event) {
	t.events = append(t.events, ev)
}

func (t *txn) rollbackTo(sp savepoint) {
	for i := len(t.undo) - 1; i >= sp.undo; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:sp.undo]
	t.events = t.events[:sp.events]
}

type txnKey struct{}

type boundTxn struct {
	engine *Engine
	tx     *txn
}

// joined returns the transaction this engine is already running on ctx, if
// any. Collaborators that call back into the engine with the context they
// were handed join the running operation instead of blocking on the lock.
func (e *Engine) joined(ctx context.Context) *txn {
	b, ok := ctx.Value(txnKey{}).(*boundTxn)
	if !ok || b.engine != e {
		return nil
	}
	return b.tx
}

// run executes fn as one indivisible operation. Either every effect of fn
// stays applied or all of them are rolled back. Events reach the notifier
// in the order their operations committed.
func (e *Engine) run(ctx context.Context, fn func(ctx context.Context, tx *txn) error) error {
	if tx := e.joined(ctx); tx != nil {
		sp := tx.savepoint()
		if err := fn(ctx, tx); err != nil {
			tx.rollbackTo(sp)
			return err
		}
		return nil
	}

	events, err := e.commit(ctx, fn)
	defer e.notifyMu.Unlock()
	for _, ev := range events {
		e.notifier.Notify(ev)
	}
	return err
}

// commit runs fn under the engine lock and returns holding notifyMu, which
// is taken before the engine lock is released. A panic in fn rolls its
// effects back and releases the lock before propagating.
func (e *Engine) commit(ctx context.Context, fn func(ctx context.Context, tx *txn) error) (events []Event, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &txn{}
	defer func() {
		if r := recover(); r != nil {
			tx.rollbackTo(savepoint{})
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txnKey{}, &boundTxn{engine: e, tx: tx}), tx); err != nil {
		tx.rollbackTo(savepoint{})
	}
	e.notifyMu.Lock()
	return tx.events, err
}

// view runs a read-only fn under the engine lock, or directly when called
// from inside a running operation.
func (e *Engine) view(ctx context.Context, fn func()) {
	if e.joined(ctx) != nil {
		fn()
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}
