// Package workflow implements the phase state machine that paces book
// generation. A Manager owns every Book, gates phase transitions (a phase
// activates only after its predecessor completed) and is the sanctioned entry
// point for new work via CreateTask.
package workflow
