/*
Package events provides an in-memory event broker for step lifecycle
notifications. pkg/dag publishes an Event each time a status transition or
blob-GC sweep completes; subscribers (a dashboard, an audit log, a future
notification hook) get an asynchronous, best-effort feed via Subscribe.
Delivery is never guaranteed — a full subscriber buffer drops new events
rather than blocking the publisher.
*/
package events
