// Package room implements ephemeral three-person chat rooms: the room table
// and its code indices, join-time credential and capacity checks, presence
// bookkeeping, and in-room message relay.
//
// A room is created by one connection and lives exactly as long as at least
// one member connection is attached to it. Two codes are handed out on
// creation: a public join code that locates the room and a secondary code
// that must accompany it. The creator may additionally protect the room with
// a password.
//
// All state is owned by a Registry. Every mutation of the room table, the
// join/secondary code indices and the connection reverse index happens under
// one mutex, so the indices can never point at a room that has been removed.
// Room-wide broadcasts are issued under the same mutex; connections must
// therefore enqueue without blocking.
//
// Push notifications are not sent from here. After relaying a message the
// Registry hands an immutable Dispatch to its Notifier, which performs
// delivery on its own goroutines and reports failed subscriptions back
// through ClearPushSubscription.
package room
