// Package config defines the YAML configuration for the forseti engine
// and its surrounding services.
//
// Configuration is loaded from a single YAML file, filled with defaults,
// optionally overridden by FORSETI_* environment variables, and validated
// before use:
//
//	cfg, err := config.LoadConfig("forseti.yaml")
//
// A minimal configuration file:
//
//	engine:
//	  cycle_limit: 1000
//	rules:
//	  path: rules/
//	  watch: true
//	  schema:
//	    fact_types:
//	      Transaction: [amount, country, user_id, status]
//	audit:
//	  enabled: true
//	  backend: sqlite
//	  sqlite_path: data/audit.db
//	metrics:
//	  enabled: true
//	  path: /metrics
package config
