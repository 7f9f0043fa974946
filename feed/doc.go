// Package feed defines the normalization contract shared by all adapters.
//
// Every upstream source, regardless of protocol, is reduced to a stream of
// PositionEvent values. The tracker consumes nothing else. Validation at this
// boundary is what lets the rest of the system assume well-formed input.
package feed
