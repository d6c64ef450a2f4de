// Package syncreg is the publish/subscribe registry that keeps cross-field
// dependencies of an instance tree consistent: the identifier options of
// id-ref fields and the mirrored values of fields declaring a value source.
// It reacts to tree changes synchronously; every propagation completes before
// the triggering mutation returns.
package syncreg
