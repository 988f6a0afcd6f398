// Package harness runs YAML scenarios against keyed stores and lifecycle
// managers backed by a fresh journal.
//
// # Scenario Format
//
//	name: keyed_store_durability
//	description: "Entries survive a restart"
//	entities:
//	  - name: s1
//	    type: store
//	  - name: f1
//	    type: factory
//	flow:
//	  - target: s1
//	    command: specify
//	    key: KeyA
//	    value: "1"
//	    expect:
//	      reply: Specified
//	  - restart: s1
//	  - target: f1
//	    command: create
//	    save_as: c1
//	  - target: f1
//	    command: forward
//	    child: c1
//	    message: { command: get, key: KeyA }
//	    expect:
//	      reply: NotFound
//	assertions:
//	  - type: final_state
//	    entity: s1
//	    expect: { KeyA: "1" }
//	  - type: journal_count
//	    entity: c1
//	    count: 0
//
// Store commands are specify, delete, get, all and len. Factory commands are
// create, delete, list and forward; forwarded messages are store commands,
// since factory children are keyed stores of strings.
//
// # Replies
//
// Each step records its reply under a case name: Specified, Deleted, Got,
// NotFound, GotAll, Count, Created, Listed, or NoReply when nothing answered
// within the wait.
//
// # Assertion Types
//
//   - final_state: replays the entity's journal into a fresh store and
//     compares every entry
//   - journal_count: number of events persisted for the entity
//   - journal_order: event types persisted for the entity, in order
//   - trace_count: number of replies with the given case
//
// # Deterministic Runs
//
// Entity and child ids come from an idgen.Counter in declaration and
// creation order, so the first entity is always
// 00000000-0000-0000-0000-000000000001. Trace steps are numbered by a
// logical clock. Identical scenarios therefore produce byte-identical
// snapshots, which RunWithGolden compares against testdata/golden.
package harness
