// Package bridge connects inbound legacy IPC notifications to the answering service.
//
// A Bridge is the single context value of a running bridge. It owns the connection
// to the answering service and the shared region mapping, and it processes every
// notification in one loop, strictly one at a time:
//
//	b := bridge.New(forwarder, regions)
//	go b.Run(ctx)
//
//	answer, err := b.Embedded(tag, block)
//
// Notifications are typed events (EmbeddedRequest, ReferencedRequest, TimerTick,
// RestartRequested, ShutdownRequested, StatusRequested). Callers on other goroutines
// post them with Submit, or through the IBridge methods used by the host channel
// server, and block until the loop has processed them.
//
// The Dispatcher handles the two request shapes:
//
//   - Embedded: the block and its length come from the host, it is forwarded as is.
//   - Referenced: the region is resolved, the block length at the offset is decoded
//     from the record framing. If the framing can not be decoded the whole remaining
//     region is forwarded.
//
// The reply is decoded into a separate buffer and only copied over the block when its
// length matches exactly. Any failure leaves the block untouched.
package bridge
