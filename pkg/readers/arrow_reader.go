package readers

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/vetsynth/pkg/core"
)

// NewArrowReader opens an Arrow IPC file export.
func NewArrowReader(config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow reader")
	}

	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow file: %w", err)
	}

	alloc := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(alloc))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	return newStreamReader(&ipcRecords{reader: fr}, alloc, fr, f), nil
}

// ipcRecords walks the record batches of an IPC file in order.
type ipcRecords struct {
	reader *ipc.FileReader
	next   int
	cur    arrow.Record
	err    error
}

func (r *ipcRecords) Schema() *arrow.Schema { return r.reader.Schema() }

func (r *ipcRecords) Next() bool {
	if r.err != nil || r.next >= r.reader.NumRecords() {
		return false
	}
	rec, err := r.reader.Record(r.next)
	if err != nil {
		r.err = err
		return false
	}
	r.next++
	r.cur = rec
	return true
}

func (r *ipcRecords) Record() arrow.Record { return r.cur }

func (r *ipcRecords) Err() error { return r.err }

func (r *ipcRecords) Retain() {}

func (r *ipcRecords) Release() {}
