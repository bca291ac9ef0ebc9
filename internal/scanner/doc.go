// Package scanner drives a scan session: a single-flight polling loop
// that captures the latest frame, uploads it for classification, maps
// the result to a display state and side effects, and schedules the
// next cycle at a cadence matching what the server reported.
//
// The controller owns all session state. External effects go through
// narrow interfaces (ParentNotifier, Navigator, StatusSink) so the
// state machine runs headless under test.
package scanner
