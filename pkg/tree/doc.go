// Package tree materialises a content schema into a live instance tree.
//
// Every group and field of the schema that is present in the document is an
// Instance. Repeatable nodes are managed by a Repeater per parent instance,
// which keeps its members numbered 1..N after every insertion and removal.
// Qualified ids and generated identifiers (ORG-0001, LOT-0002, ...) derive
// from that numbering and are refreshed in the same pass.
//
// Structural mutations are reported to listeners as a single Change once the
// tree settled. Value changes made by listeners while a Change is being
// delivered are reported after every listener has seen the Change.
package tree
