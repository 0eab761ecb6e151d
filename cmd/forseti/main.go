// Forseti is a forward-chaining rule engine for risk decisions.
//
// It evaluates declarative YAML rules against batches of facts through an
// incremental matching network, producing a tagged decision with a full
// firing trace:
//   - Declarative rules with joins, negation, and aggregations
//   - Deterministic conflict resolution and bounded inference
//   - Audit records for every session (memory or SQLite)
//   - Hot reload of rule files
//
// Usage:
//
//	# Evaluate a facts file against a rule directory
//	forseti run --rules rules/ --facts facts.yaml
//
//	# Evaluate fact batches streamed on stdin
//	cat batches.yaml | forseti run --rules rules/
//
//	# Compile rules without evaluating anything
//	forseti validate --rules rules/
//
//	# Show version information
//	forseti version
package main

func main() {
	Execute()
}
