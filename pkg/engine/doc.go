// Package engine wires the policy resolver, scheduler, notification store and
// settings store into the operations producers and the notification panel call.
//
// RegisterEvent turns a domain event into scheduled triggers; the scheduler
// later hands each one to the dispatcher. Everything else reads or mutates the
// stores on behalf of a caller identity.
package engine
