// Package audit defines the audit trail for inference sessions.
//
// Every session run can be captured as a Record: which rule set version
// decided, which rules fired on which facts and why, and the final fact
// state. Records satisfy the explainability requirement for risk
// decisions: given a record, a reviewer can reconstruct the decision
// without re-running the engine.
//
// The package is split the same way the data flows:
//
//   - audit (this package): the Record type and the Storage interface
//   - audit/recorder: async capture of engine results into storage
//   - audit/storage: memory and SQLite storage backends
//   - audit/retention: scheduled pruning of old records
package audit
