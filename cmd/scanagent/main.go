// Package main provides the entry point for the scanagent CLI.
//
// scanagent drives a live scan session against a label-classification
// server: it captures frames from a camera or screen share, uploads
// them for classification, and runs the intake-confirmation workflow
// from the terminal.
//
// Usage:
//
//	scanagent scan --server https://scan.example.com
//	scanagent history [session-token]
//
// See --help for all available options.
package main

// main is the entry point for scanagent.
func main() {
	Execute()
}
