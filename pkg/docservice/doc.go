// Package docservice submits visual models to a notice document service and
// maps the validation reports it returns back onto instance qualified ids.
package docservice
