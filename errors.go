package semispace

import "fmt"

// Reason classifies the unrecoverable failures the heap can hit once it is
// running. Problems found before the heap runs (bad configuration, failed
// reservation) are ordinary errors from Initialize instead.
type Reason int

const (
	// ReasonOutOfMemory means a collection completed and the requested
	// bytes still do not fit in the tospace. The heap does not grow.
	ReasonOutOfMemory Reason = iota

	// ReasonPageBudget means the semi-space could not donate enough page
	// budget for a large allocation, even after a collection.
	ReasonPageBudget

	// ReasonPageAlloc means the large-object space failed to produce pages
	// whose budget had already been reserved. Unlike ReasonPageBudget this
	// is not exhaustion but a broken invariant, usually the OS refusing a
	// mapping the accounting says must fit.
	ReasonPageAlloc

	// ReasonCorrupt means tracing found a reference outside both spaces,
	// an object with an invalid kind tag, or an audit mismatch.
	ReasonCorrupt
)

var reasonNames = map[Reason]string{
	ReasonOutOfMemory: "out of memory",
	ReasonPageBudget:  "page budget exhausted",
	ReasonPageAlloc:   "page allocation failed",
	ReasonCorrupt:     "heap corruption",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// HeapError is the value a fatal heap failure panics with. There is no error
// return path out of the collector: a half-finished collection cannot be
// resumed or rolled back, so these conditions stop the program. Tests and
// embedder shutdown hooks can still recover the panic and inspect Reason.
type HeapError struct {
	Reason Reason
	msg    string
}

func (e *HeapError) Error() string {
	return e.msg
}

// fatal reports an unrecoverable failure.
func fatal(reason Reason, format string, args ...interface{}) {
	panic(&HeapError{Reason: reason, msg: "semispace: " + fmt.Sprintf(format, args...)})
}
