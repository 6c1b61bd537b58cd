package optimize

import "errors"

// ErrWorkerTaskFault marks a task that panicked. The scheduler logs it and
// treats the task as not improving.
var ErrWorkerTaskFault = errors.New("optimize: worker task fault")
