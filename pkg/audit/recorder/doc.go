// Package recorder captures engine results as audit records.
//
// Records are written asynchronously so a session's caller never blocks on
// storage. The recorder drains its channel on Close, so records accepted
// before shutdown are not lost.
package recorder
