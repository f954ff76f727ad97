// Package model is a small scientific-session document built on the
// persistence package: a Project owns data items and display items, display
// items own a data channel and a list of graphics, and data channels refer to
// data items they do not own.
//
// Edits that should be undoable go through the commands in commands.go, which
// record modified-state fingerprints on an undo.Stack. Cascading removals
// return a changes.UndeleteLog that restores the removed objects.
package model
