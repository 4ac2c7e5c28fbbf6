// Package storage abstracts the filesystem tree exposed by a cave.
//
// Caves are only ever reachable as mounted filesystem paths: implementations
// of Store are assumed to be fairly simple and do not speak any network
// protocol of their own.
package storage

import (
	"context"
	"io"
	"time"
)

// Store implementations expose one cave's tree as a flat keyspace of
// slash-separated relative paths.
//
// Keys never carry a leading slash. Directories are implicit: they appear
// when an object is put below them and are never listed by Walk.
type Store interface {
	String() string

	// Has tells whether a regular file exists at key
	Has(context.Context, string) (bool, error)

	// Stat reports the size and modification time of the object at key
	Stat(context.Context, string) (FileInfo, error)

	// Get opens the object at key for reading
	Get(context.Context, string) (io.ReadCloser, error)

	// GetAt opens the object at key for reading, starting at a byte offset.
	// Resumed transfers use this to skip bytes already landed.
	GetAt(context.Context, string, int64) (io.ReadCloser, error)

	// Put creates or overwrites the object at key. With exclusive set, an
	// existing object makes the call fail with status.ErrExists.
	Put(context.Context, string, io.Reader, bool) error

	// OpenAppend opens the object at key for appending, creating it if needed
	OpenAppend(context.Context, string) (io.WriteCloser, error)

	// Delete removes the object at key
	Delete(context.Context, string) error

	// Rename moves an object within the store
	Rename(context.Context, string, string) error

	// Walk invokes fn for every object key under prefix, in unspecified
	// order. A non-nil error from fn stops the walk and is returned.
	Walk(context.Context, string, func(key string) error) error
}

// FileInfo is the subset of file metadata the engine cares about
type FileInfo struct {
	Size  int64
	Mtime time.Time
}

// PipeIO copies a reader to a writer with a modest buffer
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(writer, reader, buf)
}
