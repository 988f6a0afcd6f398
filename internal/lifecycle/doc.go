// Package lifecycle manages dynamically created child entities.
//
// A Manager is itself a persistent entity. Its journal records two kinds of
// events: an id was issued ("created") and an id was retired ("retired").
// From those it rebuilds an index of slots:
//
//	absent   -> never issued
//	dormant  -> issued, no child process running
//	resident -> issued, child process running (handle kept in the slot)
//	retired  -> deleted; can never become dormant or resident again
//
// Children are started lazily by the first Forward addressed to them, using
// the child id as their persistence id, and they recover their own journals
// at that point. Forwarding keeps the caller as the sender so the child
// answers the caller directly. Forward to an absent or retired id is dropped
// without a reply; Delete always replies Deleted.
//
// Stopping a manager stops every resident child first.
package lifecycle
