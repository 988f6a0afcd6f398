// Package testutil holds helpers shared by tests that run entities against
// a real journal.
package testutil
