package asyncobjects

import (
	"fmt"
	"sync/atomic"
)

// objectCounter is a process-wide counter handing out stable identifiers for
// log records, so that a reader can correlate "wait" and "signal" records
// for the same primitive instance across concurrent objects of the same
// type.
var objectCounter atomic.Uint64

func nextObjectID() uint64 {
	return objectCounter.Add(1)
}

// instrumented is embedded in every primitive to carry its logging sink and
// object identity. It is not exported, and no primitive exposes the
// identity through a method; it appears only as Record.Obj in log records
// (e.g. "AsyncSemaphore#3").
type instrumented struct {
	logger Logger
	kind   string
	id     uint64
}

func newInstrumented(kind string, logger Logger) instrumented {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return instrumented{logger: logger, kind: kind, id: nextObjectID()}
}

func (n *instrumented) objName() string {
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

// log emits a record at level if the sink is enabled for it. waiterID may
// be nil.
func (n *instrumented) log(level LogLevel, op string, waiterID any, err error, fields map[string]any) {
	if !n.logger.Enabled(level) {
		return
	}
	n.logger.Log(Record{
		Level:  level,
		Obj:    n.objName(),
		Op:     op,
		ID:     waiterID,
		Err:    err,
		Fields: fields,
	})
}
