// Package capture acquires live frames from a local media source.
//
// A Source produces encoded frames on a channel. Two sources exist: a
// camera source reading a V4L2 device and a screen source grabbing an
// X11 display, both backed by an ffmpeg subprocess emitting an MJPEG
// stream on stdout. The Manager owns at most one active source at a
// time and feeds its frames into a Grabber, which holds only the most
// recent frame for the scan loop to capture on its own cadence.
package capture
