package mapper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// RecordSize is the on-disk size of one Record: two little-endian float64.
const RecordSize = 16

// Record is one (time, rate) sample of a binary series file.
type Record struct {
	Time float64
	Rate float64
}

// Reader gives random access to a binary series file through a read-only
// memory map.
type Reader struct {
	dataSourceName string
	reader         *mmap.ReaderAt
}

func NewReader(dataSourceName string) *Reader {
	return &Reader{dataSourceName: dataSourceName}
}

func (r *Reader) Open() error {
	var err error
	r.reader, err = mmap.Open(r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", r.dataSourceName, err)
	}
	if size := r.reader.Len(); size%RecordSize != 0 {
		_ = r.reader.Close()
		r.reader = nil
		return fmt.Errorf("data source %q: size %d is not a multiple of %d", r.dataSourceName, size, RecordSize)
	}
	return nil
}

func (r *Reader) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
}

func (r *Reader) Read(index int64, data *Record) error {
	var buffer [RecordSize]byte

	n, err := r.reader.ReadAt(buffer[:], index*RecordSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < RecordSize {
		return ErrEof
	}

	data.Time = math.Float64frombits(binary.LittleEndian.Uint64(buffer[0:8]))
	data.Rate = math.Float64frombits(binary.LittleEndian.Uint64(buffer[8:16]))
	return nil
}

func (r *Reader) EntryCount() int64 {
	return int64(r.reader.Len()) / RecordSize
}

// ReadSeries loads every record of an opened reader into aligned slices.
func (r *Reader) ReadSeries() ([]float64, []float64, error) {
	count := r.EntryCount()
	t := make([]float64, 0, count)
	q := make([]float64, 0, count)

	var rec Record
	for i := int64(0); ; i++ {
		err := r.Read(i, &rec)
		if errors.Is(err, ErrEof) {
			return t, q, nil
		}
		if err != nil {
			return nil, nil, err
		}
		t = append(t, rec.Time)
		q = append(q, rec.Rate)
	}
}

// LoadSeries opens dataSourceName, reads every record and closes it.
func LoadSeries(dataSourceName string) ([]float64, []float64, error) {
	r := NewReader(dataSourceName)
	if err := r.Open(); err != nil {
		return nil, nil, err
	}
	defer r.Close()
	return r.ReadSeries()
}

// WriteSeries writes (t, q) as consecutive little-endian records.
func WriteSeries(w io.Writer, t, q []float64) error {
	if len(t) != len(q) {
		return fmt.Errorf("series length mismatch: len(t)=%d len(q)=%d", len(t), len(q))
	}
	for i := range t {
		if err := binary.Write(w, binary.LittleEndian, Record{Time: t[i], Rate: q[i]}); err != nil {
			return fmt.Errorf("unable to write record %d: %w", i, err)
		}
	}
	return nil
}

func SaveSeries(dataSourceName string, t, q []float64) error {
	f, err := os.Create(dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", dataSourceName, err)
	}
	if err := WriteSeries(f, t, q); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
