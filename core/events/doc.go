// Package events defines the search progress events emitted on the event bus.
//
// Available event types:
//   - SearchStartedEvent: a traversal or climb begins
//   - EvaluationEvent: one candidate finished evaluating
//   - SearchFinishedEvent: the search completed or was cancelled
package events
