// Package report renders a scan session's history in multiple output
// formats. The history command reads sessions from the journal and
// writes them through the Writer implementations here.
package report
