// Package live holds the portal's domain types and the live source resolver.
//
// The resolver answers one question for a viewer screen: which YouTube video id
// is the channel broadcasting right now. It is fail-soft by construction: a
// missing broadcast, a transport failure or a missing channel id all collapse
// into an empty Resolution, never an error surfaced to the view. Stale answers
// are never reused; each refresh takes a sequence number at start and a result
// is applied only if no later-started refresh has already been applied.
//
// Scheduling: a resolver owns one polling goroutine (fixed interval) while it is
// active, plus a hidden-to-visible trigger gated by the age of the last
// resolution. Deactivate bumps an epoch so any in-flight lookup that completes
// afterwards is ignored; physical request cancellation is best-effort.
package live
