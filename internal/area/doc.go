// Package area defines the ordered sequence of machine areas.
//
// Areas group devices along the machine. Their configured order gives
// each area a rank, and device ordering is area rank first, position
// second. The sequence is immutable once loaded from configuration;
// an unknown area anywhere in a device definition is a fail-fast
// invariant violation.
package area
