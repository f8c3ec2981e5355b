package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/vecquery/blobstore"
	"github.com/hupe1980/vecquery/distance"
	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/model"
)

// Compacted segment blob layout:
//
//	magic (4) | version (1) | metric (1) | recordsLen (8) | indexLen (8)
//	records section: lz4 frame of the encoded record store
//	index section:   zstd block of the encoded metadata indexes
//
// The record store compresses with lz4 because it sits on the hot path of
// materialization; the index section compresses with zstd for ratio, since
// it is decoded once per open.

var blobMagic = [4]byte{'V', 'Q', 'S', 'G'}

const (
	blobVersion    = 1
	blobHeaderSize = 4 + 1 + 1 + 8 + 8
)

// ErrMalformedBlob is returned when a segment blob fails to decode.
var ErrMalformedBlob = errors.New("malformed segment blob")

// WriteBlob encodes records into a compacted segment blob and stores it
// under name.
func WriteBlob(ctx context.Context, store blobstore.BlobStore, name string, records []StoredRecord, metric distance.Metric) error {
	recordsSection, err := encodeRecordsSection(records)
	if err != nil {
		return fmt.Errorf("encode records section: %w", err)
	}
	indexSection, err := encodeIndexSection(buildSortedIndexes(records))
	if err != nil {
		return fmt.Errorf("encode index section: %w", err)
	}

	buf := make([]byte, blobHeaderSize, blobHeaderSize+len(recordsSection)+len(indexSection))
	copy(buf, blobMagic[:])
	buf[4] = blobVersion
	buf[5] = byte(metric)
	binary.LittleEndian.PutUint64(buf[6:], uint64(len(recordsSection)))
	binary.LittleEndian.PutUint64(buf[14:], uint64(len(indexSection)))
	buf = append(buf, recordsSection...)
	buf = append(buf, indexSection...)

	return store.Put(ctx, name, buf)
}

// OpenBlobSource opens a compacted segment blob and decodes it into an
// in-memory source. Returns blobstore.ErrNotFound if the blob is missing.
func OpenBlobSource(ctx context.Context, store blobstore.BlobStore, name string) (*MemorySource, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	header := make([]byte, blobHeaderSize)
	if _, err := blob.ReadAt(ctx, header, 0); err != nil {
		return nil, fmt.Errorf("read blob header: %w", err)
	}
	if !bytes.Equal(header[:4], blobMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedBlob)
	}
	if header[4] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedBlob, header[4])
	}
	metric := distance.Metric(header[5])
	recordsLen := int64(binary.LittleEndian.Uint64(header[6:]))
	indexLen := int64(binary.LittleEndian.Uint64(header[14:]))
	if blobHeaderSize+recordsLen+indexLen != blob.Size() {
		return nil, fmt.Errorf("%w: section lengths exceed blob size", ErrMalformedBlob)
	}

	records, err := readRecordsSection(ctx, blob, blobHeaderSize, recordsLen)
	if err != nil {
		return nil, fmt.Errorf("decode records section: %w", err)
	}
	byKind, err := readIndexSection(ctx, blob, blobHeaderSize+recordsLen, indexLen)
	if err != nil {
		return nil, fmt.Errorf("decode index section: %w", err)
	}

	s := &MemorySource{metric: metric}
	if len(records) == 0 {
		return s, nil
	}
	s.records = newMemoryRecordReader(records)
	s.meta = &MetadataReader{
		Bool:     byKind[metadata.KindBool],
		Int:      byKind[metadata.KindInt],
		Float:    byKind[metadata.KindFloat],
		String:   byKind[metadata.KindString],
		FullText: buildSubstringIndex(records),
	}
	return s, nil
}

func encodeRecordsSection(records []StoredRecord) ([]byte, error) {
	var raw bytes.Buffer
	writeUvarint(&raw, uint64(len(records)))
	for i := range records {
		rec := &records[i]
		writeUvarint(&raw, uint64(rec.Offset))
		writeString(&raw, string(rec.UserID))

		writeUvarint(&raw, uint64(len(rec.Embedding)))
		for _, f := range rec.Embedding {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			raw.Write(b[:])
		}

		writeUvarint(&raw, uint64(len(rec.Metadata)))
		for key, val := range rec.Metadata {
			writeString(&raw, key)
			writeValue(&raw, val)
		}

		writeString(&raw, rec.Document)
	}

	var out bytes.Buffer
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readRecordsSection(ctx context.Context, blob blobstore.Blob, off, length int64) ([]StoredRecord, error) {
	rc, err := blob.ReadRange(ctx, off, length)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	raw, err := io.ReadAll(lz4.NewReader(rc))
	if err != nil {
		return nil, err
	}

	d := &decoder{buf: raw}
	count := d.uvarint()
	records := make([]StoredRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		var rec StoredRecord
		rec.Offset = model.OffsetID(d.uvarint())
		rec.UserID = model.UserID(d.string())

		dim := d.uvarint()
		if dim > 0 {
			rec.Embedding = make([]float32, dim)
			for j := range rec.Embedding {
				rec.Embedding[j] = math.Float32frombits(d.uint32())
			}
		}

		entries := d.uvarint()
		if entries > 0 {
			rec.Metadata = make(metadata.Document, entries)
			for j := uint64(0); j < entries; j++ {
				key := d.string()
				rec.Metadata[key] = d.value()
			}
		}

		rec.Document = d.string()
		if d.err != nil {
			return nil, d.err
		}
		records = append(records, rec)
	}
	return records, d.err
}

func encodeIndexSection(byKind map[metadata.Kind]*sortedIndex) ([]byte, error) {
	var raw bytes.Buffer
	writeUvarint(&raw, uint64(len(byKind)))
	for _, kind := range []metadata.Kind{metadata.KindBool, metadata.KindInt, metadata.KindFloat, metadata.KindString} {
		idx := byKind[kind]
		raw.WriteByte(byte(kind))
		writeUvarint(&raw, uint64(len(idx.keys)))
		for key, pl := range idx.keys {
			writeString(&raw, key)
			writeUvarint(&raw, uint64(len(pl.values)))
			for i, val := range pl.values {
				writeValue(&raw, val)
				bm, err := pl.offsets[i].ToBytes()
				if err != nil {
					return nil, err
				}
				writeUvarint(&raw, uint64(len(bm)))
				raw.Write(bm)
			}
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

func readIndexSection(ctx context.Context, blob blobstore.Blob, off, length int64) (map[metadata.Kind]*sortedIndex, error) {
	rc, err := blob.ReadRange(ctx, off, length)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	compressed, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, err
	}

	d := &decoder{buf: raw}
	byKind := make(map[metadata.Kind]*sortedIndex)
	kinds := d.uvarint()
	for i := uint64(0); i < kinds; i++ {
		kind := metadata.Kind(d.byte())
		idx := newSortedIndex()
		numKeys := d.uvarint()
		for j := uint64(0); j < numKeys; j++ {
			key := d.string()
			numValues := d.uvarint()
			pl := &postingList{
				values:  make([]metadata.Value, 0, numValues),
				offsets: make([]*roaring.Bitmap, 0, numValues),
			}
			for v := uint64(0); v < numValues; v++ {
				val := d.value()
				bm := roaring.New()
				bmBytes := d.bytes(d.uvarint())
				if d.err != nil {
					return nil, d.err
				}
				if _, err := bm.FromBuffer(bmBytes); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
				}
				// FromBuffer aliases its input; clone to own the memory.
				pl.values = append(pl.values, val)
				pl.offsets = append(pl.offsets, bm.Clone())
			}
			idx.keys[key] = pl
		}
		byKind[kind] = idx
		if d.err != nil {
			return nil, d.err
		}
	}
	return byKind, d.err
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeValue(buf *bytes.Buffer, v metadata.Value) {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case metadata.KindBool:
		if v.B {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case metadata.KindInt:
		var tmp [binary.MaxVarintLen64]byte
		n := binary.PutVarint(tmp[:], v.I64)
		buf.Write(tmp[:n])
	case metadata.KindFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
		buf.Write(b[:])
	case metadata.KindString:
		writeString(buf, v.StringValue())
	}
}

// decoder is a position-tracked reader over a decoded section. The first
// error sticks; callers check err once per logical unit.
type decoder struct {
	buf []byte
	pos int
	err error
}

func (d *decoder) fail() {
	if d.err == nil {
		d.err = fmt.Errorf("%w: truncated section", ErrMalformedBlob)
	}
}

func (d *decoder) byte() byte {
	if d.err != nil || d.pos >= len(d.buf) {
		d.fail()
		return 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		d.fail()
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		d.fail()
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) uint32() uint32 {
	if d.err != nil || d.pos+4 > len(d.buf) {
		d.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v
}

func (d *decoder) uint64() uint64 {
	if d.err != nil || d.pos+8 > len(d.buf) {
		d.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v
}

func (d *decoder) bytes(n uint64) []byte {
	if d.err != nil || uint64(d.pos)+n > uint64(len(d.buf)) {
		d.fail()
		return nil
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b
}

func (d *decoder) string() string {
	return string(d.bytes(d.uvarint()))
}

func (d *decoder) value() metadata.Value {
	kind := metadata.Kind(d.byte())
	switch kind {
	case metadata.KindBool:
		return metadata.Bool(d.byte() != 0)
	case metadata.KindInt:
		return metadata.Int(d.varint())
	case metadata.KindFloat:
		return metadata.Float(math.Float64frombits(d.uint64()))
	case metadata.KindString:
		return metadata.String(d.string())
	default:
		d.fail()
		return metadata.Value{}
	}
}
