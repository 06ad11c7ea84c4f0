// Package queue persists processing jobs in SQLite. Each job records the
// chat that requested it, the uploads it consumes, the operation and its
// parameters, live progress, and the output files once a worker finishes.
// The store acts as the handoff point between the dialog (producer) and the
// workflow manager's workers (consumers).
package queue
