// Package store provides the SQLite history index for sudohist.
package store

// Session is one observed privileged command invocation.
type Session struct {
	ID         string
	User       string
	Histfile   string
	StartedNs  int64
	EndedNs    *int64
	ExitStatus *int
	Errno      *int
}

// Entry is one indexed history line.
type Entry struct {
	ID          int64
	SessionID   string
	TimestampNs int64
	Prefix      string
	Content     string
}
