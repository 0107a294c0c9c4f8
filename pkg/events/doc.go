/*
Package events provides an in-memory event broker for task-queue lifecycle
notifications.

The broker is topic-agnostic: every publish goes to every subscriber. It
exists so the scheduler can announce batch/task transitions (enqueued,
started, succeeded, failed, canceled) and index lifecycle events (created,
deleted) without coupling callers to a specific subscriber, the same
publish/subscribe shape used elsewhere in this codebase for cluster
notifications.

Publish is non-blocking with a bounded internal buffer; a slow or absent
subscriber never stalls the publisher, and a full subscriber buffer drops
the event rather than blocking the broadcast loop.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{Type: events.EventTaskSucceeded, Message: "task succeeded"})
*/
package events
