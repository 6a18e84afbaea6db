// Package bus implements channel.IChannel for execution contexts that live
// in the same process.
//
// Every context attaches an Endpoint. The endpoint is installed as the
// Publisher of the context's storage, so the native storage operations
// publish each completed mutation to it, and it is the context's notification
// channel, so listeners receive what the other endpoints published.
//
// Publishing never blocks: notifications go into a lock-free MPSC queue and
// one goroutine per bus delivers them. Delivery happens later than the
// mutation, in publish order, and never to the publishing endpoint itself.
// Sync waits until everything published so far was delivered.
package bus
