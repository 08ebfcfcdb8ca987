// Package stream runs long-lived port sessions for streaming handlers.
//
// A Pipeline owns at most one session. On Accept it opens a Task from the
// Processor and a Source, then a worker goroutine pulls fixed-size chunks
// tagged begin/continue and feeds them to the task; once the source ends or
// Stop is called, a final end chunk goes through the same task. Output the
// task emits is posted to the port in order by a per-session sender.
//
// A session ends exactly once: on Finish, on Fail, or when the script closes
// the port. The first two post a final message and disconnect the port; the
// last only releases the source. A second port arriving while a session is
// active gets a busy error and is disconnected.
package stream
