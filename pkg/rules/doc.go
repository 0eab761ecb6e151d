// Package rules provides the declarative rule model and its compiler.
//
// Rules can be authored two ways:
//
//   - Declaratively, as YAML documents unmarshalled into Definition values
//     and compiled with Compile against a Schema of known fact types.
//   - Programmatically, with the Builder API, for rules whose predicates
//     or actions need arbitrary Go code.
//
// Both paths produce engine.Rule values; Compile wraps them into a
// validated engine.RuleSet. The compiled set is immutable, so hot reload
// (see the source subpackage) means compiling a fresh set and pointing new
// sessions at it.
//
// A declarative rule looks like:
//
//	name: large-foreign-transaction
//	priority: 50
//	when:
//	  - fact: Transaction
//	    as: tx
//	    where:
//	      - {field: amount, op: ">", value: 10000}
//	      - {field: country, op: in, value: [CN, RU, NG]}
//	then:
//	  - type: set_tag
//	    tag: large-foreign
//	  - type: explain
//	    message: "transaction ${tx.amount} from ${tx.country}"
package rules
