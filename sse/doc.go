// Package sse is the core of streamhub: a server-side event fan-out hub for
// long-lived Server-Sent Event streams.
//
// Producers hand the hub a typed event plus a selector (a connection, a user,
// a session, a metadata predicate, or everyone); the hub encodes the event
// once and writes it to every matching open stream. A heartbeat loop keeps
// intermediaries from closing idle streams and evicts connections whose peers
// have silently vanished.
//
// # Architecture
//
//   - Event: one message with its text/event-stream encoding
//   - Connection: a single open stream to one client
//   - Registry: indexed ownership of open connections
//   - Hub: lifecycle, routing, heartbeat and reaping
//
// # Usage
//
//	hub := sse.NewHub(sse.Config{})
//	hub.Start(context.Background())
//	sse.RegisterRoutes(router, hub, sse.HandlerConfig{})
//	hub.SendToUser("u1", sse.Event{Type: "order.shipped", Data: order})
package sse
