// Package client implements the HTTP interface to the classification
// server.
//
// The server exposes four endpoints whose paths are discovered at
// startup through a config handshake:
//   - frame upload: multipart POST of an encoded frame plus session
//     metadata, answered with a classification result
//   - intake confirmation: form-encoded POST of a payload's identifying
//     fields
//   - session close: best-effort form-encoded POST on teardown
//
// Only the handshake path itself is hardcoded; everything else comes
// from the server, so server-side renames never break deployed agents.
//
// Requests optionally route through a SOCKS5 proxy and carry per-server
// credentials (cookie, CSRF token, custom headers) injected at the
// transport level so every request, including redirects, is covered.
package client
