// Package serializer converts the line protocol messages exchanged with the answering
// service to and from single JSON lines.
//
// Key Components:
//
//   - ILineSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Strict implementation using encoding/json. A reply line that
//     is not valid JSON is a decode error.
//
//   - gjsonSerializerImpl: Lenient implementation that scans fields with tidwall/gjson
//     and builds lines with tidwall/sjson. Unknown fields and wrongly typed fields are
//     ignored, a reply line that is not JSON decodes into a failed reply whose error
//     text is the raw line.
//
// Both implementations produce identical request lines:
//
//	{"cmd":"ipc","dwData":<uint32>,"cbData":<uint32>,"hex":"<uppercase hex>"}
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer
