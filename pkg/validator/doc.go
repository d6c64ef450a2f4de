// Package validator checks field instances against their dynamic properties.
//
// Each field instance moves from Unchecked to Valid or Invalid on its first
// check and between Valid and Invalid afterwards. Properties are evaluated in
// registration order and the first failure decides the message. Soft failures
// are reported through State and never returned as errors; errors are kept
// for properties that cannot be resolved.
package validator
