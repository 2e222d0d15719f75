package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Foreign call context
// ---------------------------------------------------------------------------

// Control tells a nondeterministic foreign predicate why it is called.
type Control int

const (
	FirstCall Control = iota
	Redo
	Pruned
)

func (c Control) String() string {
	switch c {
	case FirstCall:
		return "first_call"
	case Redo:
		return "redo"
	}
	return "pruned"
}

// ForeignContext is passed to every foreign predicate call.
type ForeignContext struct {
	Control   Control
	Predicate *Predicate
	// Module is the context module: the caller's module for transparent
	// predicates, else the definition module.
	Module *Module
	Arity  int

	state any
	retry bool
}

// State returns the value given to Retry by the previous call.
func (fc *ForeignContext) State() any { return fc.state }

// Retry ends a nondeterministic call with success and asks to be called
// again with Redo and state on backtracking. It returns true so a
// predicate can write `return fc.Retry(next)`.
func (fc *ForeignContext) Retry(state any) bool {
	fc.state = state
	fc.retry = true
	return true
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// QueryFlags select what happens to an exception raised by a query.
type QueryFlags int

const (
	// QueryNormal logs the exception, clears it and reports ErrException.
	QueryNormal QueryFlags = 0
	// QueryCatchException keeps the exception until the query is closed.
	QueryCatchException QueryFlags = 1
	// QueryPassException leaves the exception pending after Close.
	QueryPassException QueryFlags = 2
)

type queryState int

const (
	queryFresh queryState = iota
	queryRetry
	queryDone
	queryClosed
)

// Query is an open call of a foreign predicate. Queries nest; only the
// innermost may be advanced or closed.
type Query struct {
	e      *Engine
	parent *Query
	pred   *Predicate
	flags  QueryFlags

	argv  int
	arity int
	frame *foreignFrame

	fc        ForeignContext
	state     queryState
	exception bool
	solutions int

	ctx  context.Context
	stop func() bool
}

// OpenQuery prepares a call of pred with the arity handles starting at args.
// The context module defaults to the predicate's module. Cancelling ctx
// raises unwind(abort) in the engine; a passed deadline raises
// time_limit_exceeded.
func (e *Engine) OpenQuery(ctx context.Context, module *Module, pred *Predicate, args Term, flags QueryFlags) (*Query, error) {
	e.requireFrame("OpenQuery")
	if pred == nil {
		return nil, errors.New("open query: nil predicate")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < pred.Arity; i++ {
		e.valid("OpenQuery", args+Term(i))
	}
	if module == nil || pred.Flags&PredTransparent == 0 {
		module = pred.Module
	}
	if !e.ensureLocal(pred.Arity + 1) {
		return nil, ErrException
	}

	argv := e.local.top
	clear(e.local.w[argv : argv+pred.Arity])
	e.local.top += pred.Arity
	for i := 0; i < pred.Arity; i++ {
		w, ok := e.linkVal(valTermRef(args + Term(i)))
		if !ok {
			e.local.top = argv
			return nil, ErrException
		}
		e.local.w[argv+i] = w
	}

	q := &Query{
		e:      e,
		parent: e.query,
		pred:   pred,
		flags:  flags,
		argv:   argv,
		arity:  pred.Arity,
		ctx:    ctx,
		fc:     ForeignContext{Control: FirstCall, Predicate: pred, Module: module, Arity: pred.Arity},
	}
	q.frame = e.openFrame()
	if ctx.Done() != nil {
		q.stop = context.AfterFunc(ctx, func() { e.RaiseSignal(cancelSignal(ctx)) })
	}
	e.query = q
	log.Debugf("engine %d: opened query %s", e.id, pred.Indicator(e.rt))
	return q, nil
}

func cancelSignal(ctx context.Context) Signal {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return SigTimeout
	}
	return SigAbort
}

// Args returns the first argument handle of the query. Bindings made by
// solutions are visible through them.
func (q *Query) Args() Term { return Term(q.argv) }

// Solutions returns the number of successful Next calls.
func (q *Query) Solutions() int { return q.solutions }

func (q *Query) check(op string) {
	if q.state == queryClosed {
		apiError(op, "query is closed")
	}
	if q.e.query != q {
		apiError(op, "not the innermost open query")
	}
}

func (q *Query) checkFrame(op string) {
	if q.e.fli != q.frame {
		apiError(op, "a foreign frame opened inside the query is still open")
	}
}

// Next computes the next solution. It returns false with a nil error when
// there are no more solutions, and ErrException when the predicate raised.
func (q *Query) Next() (bool, error) {
	q.check("Query.Next")
	e := q.e
	switch q.state {
	case queryDone:
		return false, nil
	case queryRetry:
		q.rewind()
		q.fc.Control = Redo
	}

	if q.ctx.Err() != nil {
		e.RaiseSignal(cancelSignal(q.ctx))
	}
	if !e.pollSignals() {
		q.state = queryDone
		return false, q.exceptionResult()
	}

	ok := q.call()
	if ok {
		if e.exceptionTerm != 0 {
			log.Errorf("engine %d: %s succeeded with a pending exception", e.id, q.pred.Indicator(e.rt))
			e.ClearException()
			q.state = queryDone
			return false, ErrForeignLeftException
		}
		q.solutions++
		q.state = queryDone
		if q.fc.retry {
			if q.pred.Flags&PredNondeterministic != 0 {
				q.state = queryRetry
			} else {
				log.Warningf("engine %d: deterministic %s asked for a retry", e.id, q.pred.Indicator(e.rt))
			}
		}
		return true, nil
	}
	q.state = queryDone
	if e.exceptionTerm != 0 {
		return false, q.exceptionResult()
	}
	return false, nil
}

// rewind undoes the previous solution before a redo. Handles created in
// the query frame since it was opened are released.
func (q *Query) rewind() {
	e := q.e
	e.Undo(q.frame.mark)
	e.local.top = q.frame.base()
	q.frame.size = 0
	q.frame.noFreeBefore = 0
	e.dropLocalTrail(q.frame.mark.trail)
}

// call runs the predicate once. A Throw inside it is recovered here, and
// frames or queries it left open are dropped.
func (q *Query) call() (ok bool) {
	e := q.e
	if !e.ensureLocal(1) {
		return false
	}
	cf := &callFrame{parent: e.env, pred: q.pred, argv: q.argv, arity: q.arity}
	e.env = cf
	fr := e.openFrame()
	deferSignals := q.pred.Flags&PredSigAtomic != 0
	if deferSignals {
		e.sigAtomic++
	}
	q.fc.retry = false

	defer func() {
		r := recover()
		if deferSignals {
			e.sigAtomic--
		}
		for e.query != q {
			log.Warningf("engine %d: %s left a query open", e.id, q.pred.Indicator(e.rt))
			e.query.abandon()
		}
		for e.fli != fr {
			log.Warningf("engine %d: %s left a foreign frame open", e.id, q.pred.Indicator(e.rt))
			e.popFrame()
		}
		e.popFrame()
		e.env = cf.parent
		if recoverThrow(r) {
			ok = false
		}
	}()
	return q.pred.Func(e, Term(q.argv), &q.fc)
}

// exceptionResult applies the exception flags after the query raised.
func (q *Query) exceptionResult() error {
	e := q.e
	q.exception = true
	if q.flags&(QueryCatchException|QueryPassException) != 0 {
		return ErrException
	}
	msg := e.exceptionText()
	log.Errorf("engine %d: %s raised %s", e.id, q.pred.Indicator(e.rt), msg)
	e.ClearException()
	return fmt.Errorf("%w: %s", ErrException, msg)
}

// exceptionText renders the pending exception.
func (e *Engine) exceptionText() string {
	var buf bytes.Buffer
	if err := e.writeWord(&buf, lloc(binSlot), WriteQuoted); err != nil {
		return "<unprintable exception>"
	}
	return buf.String()
}

// Exception returns a handle holding the exception the query raised, or 0.
func (q *Query) Exception() Term {
	if !q.exception {
		return 0
	}
	return q.e.Exception()
}

// prune tells a nondeterministic predicate that no more solutions are
// wanted.
func (q *Query) prune() {
	if q.state != queryRetry {
		return
	}
	q.fc.Control = Pruned
	e := q.e
	pending := e.exceptionTerm
	q.call()
	if e.exceptionTerm != pending {
		log.Warningf("engine %d: %s raised while being pruned", e.id, q.pred.Indicator(e.rt))
	}
}

// Cut closes the query, keeping the bindings of the last solution.
func (q *Query) Cut() {
	q.check("Query.Cut")
	q.checkFrame("Query.Cut")
	q.prune()
	q.e.popFrame()
	q.finish()
}

// Close closes the query, undoing all its bindings.
func (q *Query) Close() {
	q.check("Query.Close")
	q.checkFrame("Query.Close")
	q.prune()
	q.e.Undo(q.frame.mark)
	q.e.popFrame()
	q.finish()
}

// Discard closes the query like Close and also drops any exception it
// raised, whatever the flags.
func (q *Query) Discard() {
	exc := q.exception
	q.Close()
	if exc {
		q.e.ClearException()
	}
}

func (q *Query) finish() {
	e := q.e
	e.local.top = q.argv
	e.dropLocalTrail(q.frame.mark.trail)
	e.query = q.parent
	q.state = queryClosed
	if q.stop != nil {
		q.stop()
	}
	if q.exception && q.flags&QueryCatchException != 0 {
		e.ClearException()
	}
	log.Debugf("engine %d: closed query %s after %d solutions", e.id, q.pred.Indicator(e.rt), q.solutions)
}

// abandon drops a query a foreign predicate left open during a Throw.
func (q *Query) abandon() {
	e := q.e
	for e.fli != q.frame {
		e.popFrame()
	}
	e.popFrame()
	e.local.top = q.argv
	e.query = q.parent
	q.state = queryClosed
	if q.stop != nil {
		q.stop()
	}
}

// CallPredicate runs pred once and keeps the bindings of its first
// solution.
func (e *Engine) CallPredicate(ctx context.Context, module *Module, pred *Predicate, args Term, flags QueryFlags) (bool, error) {
	q, err := e.OpenQuery(ctx, module, pred, args, flags)
	if err != nil {
		return false, err
	}
	ok, err := q.Next()
	q.Cut()
	return ok, err
}
