// Package source loads rule definitions from external sources and keeps a
// compiled rule set current as they change.
//
// A Source yields raw definitions; the Manager compiles them against a
// schema and swaps the active engine.RuleSet atomically. Sessions hold the
// set they were created with, so a reload never disturbs a running
// inference.
//
//	src := source.NewFileSource("rules/", logger)
//	mgr, err := source.NewManager(src, schema, logger)
//	rs := mgr.Current()
//
// File sources support hot reload through fsnotify:
//
//	go mgr.Watch(ctx)
package source
