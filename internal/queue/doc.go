// Package queue expands a dialogue script and speaker mapping into the
// ordered list of work items a batch job synthesizes.
package queue
