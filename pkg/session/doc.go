// Package session opens notice forms for editing. A Manager loads the notice
// type of a request through the configured providers, presets the standard
// notice fields, binds codelist and indicator options, and wires the
// instance tree to the synchronization registry, the validator and optional
// metrics. The resulting Session exposes the structural operations, the
// visual model and submission to a document service.
package session
