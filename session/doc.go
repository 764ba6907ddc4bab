// Package session drives a VisionAir device over any byte transport:
// it correlates request packets with the notification stream, retries
// reads that race the device's internal sensor switch, and keeps the
// last known device state for passive consumers.
//
// The wire protocol has no request identifiers, so correlation is
// structural: one command in flight at a time, matched against the set
// of packet types its operation is known to produce.
package session
