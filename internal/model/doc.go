// Package model defines the core data structures used throughout scanagent.
//
// This package contains the following main types:
//   - CameraState: The classifier's primary state for a frame
//   - ResponseState: The analyzer's sub-state (in-flight progress)
//   - ScanResult: One classification round-trip result
//   - ScanType: The kind of scan a session performs
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (client, scanner, journal, report) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be deserializable from the classification
// service's JSON responses and serializable for journal storage.
package model
