// Package zfile opens run files, decompressing gzipped ones.
package zfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Ext is the extension of compressed files.
const Ext = ".gz"

// Open returns a reader for the file, transparently decompressing it
// if the name ends with ".gz".
func Open(fn string) (io.ReadCloser, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fn, Ext) {
		return f, nil
	}
	rdr, err := pgzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr closes both the decompressor and the underlying file.
type gzipr struct {
	io.ReadCloser
	f *os.File
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.f.Close()
	if e1 != nil {
		return e1
	}
	return e2
}
