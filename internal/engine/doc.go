// Package engine implements the TAXII 1.x request-processing engines.
//
// The engines are transport-agnostic: each operation receives a Request
// (dialect, resolved service configuration, optional account) and a typed
// message, consults the taxii.Repository, and returns either a reply or a
// *StatusError. They never read ambient configuration.
//
// Components:
//
//   - MatchBindings: content binding negotiation against a collection
//   - ResultSetManager: frozen filters behind pagination and deferred delivery
//   - Poll / PollFulfillment: synchronous and asynchronous delivery
//   - ManageSubscription: Active, Paused, Unsubscribed lifecycle
//   - Inbox: destination resolution, authorization and per-block fan-out
//   - CollectionInformation: listing of collections and their services
//
// The repository's not-ready outcome is not an error. It is the typed
// taxii.FetchNotReady state and surfaces as PollResult.Pending when the
// caller allows asynchronous delivery.
//
// Validation failures are reported immediately and never retried. Within an
// Inbox request all gates fire before the first write.
package engine
