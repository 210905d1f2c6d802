// Package journal keeps a SQLite history of pipeline operations.
//
// Every encode, slice, compose, concat, reverse and remove the pipeline
// performs is recorded with its outcome, the external command it ran, and
// how long it took. Cache hits are recorded too, so the history shows when
// work was skipped. The manifest remains the source of truth for which
// artifacts exist; the journal is an audit trail only and may be deleted at
// any time.
package journal
