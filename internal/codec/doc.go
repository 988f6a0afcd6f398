// Package codec encodes event payloads as canonical JSON.
//
// Every event written to the journal goes through Marshal, and the bytes it
// returns are the bytes applied to in-memory state on commit and on replay.
// The encoding is deterministic for a given value:
//   - Object keys sorted by UTF-16 code units (RFC 8785 ordering)
//   - Strings kept byte for byte; invalid UTF-8 is rejected, never replaced
//   - No HTML escaping; only quote, backslash and control characters are escaped
//   - Numbers written exactly as encoding/json produced them
//
// MarshalNFC additionally NFC normalizes strings. Harness snapshots use it;
// event payloads never do.
//
// Unmarshal decodes with json.Number for untyped numbers so integers above
// 2^53 survive a round trip through an `any` target.
package codec
