// Package ipc decodes the legacy IPC record block format that flight-simulator
// clients write into their IPC memory before asking the driver for an answer.
//
// A block is a sequence of records followed by a 4-byte zero terminator. Every
// record starts with a little endian uint32 tag that selects its kind:
//
//	tag 0  Terminator    4 bytes, ends the block
//	tag 1  ReadRequest   tag | offset | length | destination tag, then length payload bytes
//	tag 2  WriteRequest  tag | offset | length, then length payload bytes
//
// The bridge never interprets offsets or payloads. It only needs to know how many
// bytes make up one block so it can forward exactly that range. Any tag other than
// the three above, and any header or payload that does not fit into the available
// bytes, makes the whole block undecodable (ErrFraming). The cause is told apart by
// ErrTruncated, ErrUnknownTag and ErrNoTerminator.
//
// Key Components:
//
//   - RecordKind: the tagged variant of the three record kinds. Every switch over
//     a RecordKind in this module is exhaustive, so adding a kind is a compile-time
//     visible change.
//
//   - Walk: read-only scan over a block that reports every decoded record, used by
//     BlockLength and by the development answering service.
//
//   - BlockLength: the framing decoder used by the request dispatcher.
//
//   - AppendRead, AppendWrite, AppendTerminator: block builders for tools and tests.
package ipc
