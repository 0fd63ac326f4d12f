// Package units models marketplace work units and their lifecycle.
//
// A [Unit] starts as a bare id and loads two snapshots on demand: the [FullSnapshot]
// (status, expiry, counts, annotation) and the [AssignmentSnapshot] (the worker's
// submission). Each is fetched at most once per Unit value.
//
// # Lifecycle
//
//	unknown --fetch--> assignable --submit--> submitted --review--> approved | rejected
//
// Independently, a unit is expired once its lifetime passes and expired-overdue once
// the assignment deadline has also run out.
//
// # Ownership
//
// Units created by this tool carry their row's audio URL as a stashed parameter.
// [Unit.StashedParam] looks for it in loaded answers, then the annotation, then
// freshly fetched answers (only if something was submitted), then the hidden inputs
// of the question document. Each step runs only if the previous ones came up empty.
//
// # Caching
//
// A unit that is not ours, reviewed, or expired-overdue will never change in a way
// we care about. [Unit.ToCache] stores those in the lifecycle cache so later runs
// skip the network entirely. All collaborators come from an explicit [Env].
package units
