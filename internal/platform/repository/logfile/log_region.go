package logfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"WCKV/internal/domain"
	"WCKV/internal/platform/codec"
	"github.com/cockroachdb/errors"
)

// LogRegion is one bounded append-only file holding the contiguous global index
// range [begin, begin+len(offsets)-1].
//
// File layout: a header frame holding the begin index, then one frame per record:
//
//	[4-byte length][VAR extraData][VAR payload][RAW int crc32(extraData+payload fields)]
type LogRegion struct {
	mu       sync.RWMutex
	id       int
	path     string
	fd       *os.File
	begin    int64
	offsets  []int64
	size     int64
	dataSize int64
}

func regionPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", id, LogSuffix))
}

func createRegion(dir string, id int, begin int64) (*LogRegion, error) {
	path := regionPath(dir, id)
	header, err := codec.NewBytesList().AppendRawLong(begin).ToBytes()
	if err != nil {
		return nil, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, header, 0644); err != nil {
		return nil, domain.StorageIo(err, "write region header %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, domain.StorageIo(err, "install region %s", path)
	}

	fd, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, domain.StorageIo(err, "open region %s", path)
	}
	return &LogRegion{
		id:    id,
		path:  path,
		fd:    fd,
		begin: begin,
		size:  int64(len(header)),
	}, nil
}

func openRegion(dir string, id int) (*LogRegion, error) {
	path := regionPath(dir, id)
	fd, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, domain.StorageIo(err, "open region %s", path)
	}
	region := &LogRegion{
		id:   id,
		path: path,
		fd:   fd,
	}
	if err := region.load(); err != nil {
		fd.Close()
		return nil, err
	}
	return region, nil
}

// load rebuilds the record offsets. A torn record at the tail is cut off;
// anything else malformed is corruption.
func (r *LogRegion) load() error {
	reader := bufio.NewReaderSize(r.fd, 64*1024)

	header, err := codec.ReadFrame(reader)
	if err != nil {
		return domain.CorruptStorage("region %s: unreadable header: %v", r.path, err)
	}
	r.begin, err = codec.NewReader(header).Long()
	if err != nil {
		return errors.Wrapf(err, "region %s header", r.path)
	}
	offset := int64(codec.IntLength + len(header))

	for {
		frame, err := codec.ReadFrame(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Printf("Region %s: truncating torn record at offset %d", r.path, offset)
			if err := r.fd.Truncate(offset); err != nil {
				return domain.StorageIo(err, "truncate region %s", r.path)
			}
			break
		}
		entry, err := decodeRecord(frame)
		if err != nil {
			return errors.Wrapf(err, "region %s record at offset %d", r.path, offset)
		}
		r.offsets = append(r.offsets, offset)
		r.dataSize += int64(len(entry.ExtraData) + len(entry.Payload))
		offset += int64(codec.IntLength + len(frame))
	}
	r.size = offset
	return nil
}

func encodeRecord(extraData, payload []byte) ([]byte, error) {
	body, err := codec.NewRawBytesList().AppendVarBytes(extraData).AppendVarBytes(payload).ToBytes()
	if err != nil {
		return nil, err
	}
	return codec.NewBytesList().
		AppendRawBytes(body).
		AppendRawInt(int32(crc32.ChecksumIEEE(body))).
		ToBytes()
}

func decodeRecord(frame []byte) (LogEntry, error) {
	if len(frame) < codec.IntLength {
		return LogEntry{}, domain.CorruptStorage("record shorter than its checksum")
	}
	body := frame[:len(frame)-codec.IntLength]
	checksum := binary.BigEndian.Uint32(frame[len(frame)-codec.IntLength:])
	if crc32.ChecksumIEEE(body) != checksum {
		return LogEntry{}, domain.CorruptStorage("record checksum mismatch")
	}
	r := codec.NewReader(body)
	extraData, err := r.VarBytes()
	if err != nil {
		return LogEntry{}, err
	}
	payload, err := r.VarBytes()
	if err != nil {
		return LogEntry{}, err
	}
	return LogEntry{ExtraData: extraData, Payload: payload}, nil
}

// append writes one record and returns its global index. Callers serialize appends.
func (r *LogRegion) append(extraData, payload []byte) (int64, error) {
	record, err := encodeRecord(extraData, payload)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	offset := r.size
	fd := r.fd
	r.mu.RUnlock()
	if fd == nil {
		return 0, r.closedErr()
	}

	if _, err := fd.WriteAt(record, offset); err != nil {
		// leave no partial record behind for the next append to sit after
		_ = fd.Truncate(offset)
		return 0, domain.StorageIo(err, "append to region %s", r.path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets = append(r.offsets, offset)
	r.size += int64(len(record))
	r.dataSize += int64(len(extraData) + len(payload))
	return r.begin + int64(len(r.offsets)) - 1, nil
}

func (r *LogRegion) Id() int {
	return r.id
}

func (r *LogRegion) GlobalIndexBegin() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.begin
}

func (r *LogRegion) GlobalIndexEnd() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.begin + int64(len(r.offsets)) - 1
}

func (r *LogRegion) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.offsets)
}

// DataSize is the number of extra data and payload bytes stored, framing excluded.
func (r *LogRegion) DataSize() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dataSize
}

func (r *LogRegion) Info() RegionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegionInfo{
		Id:    r.id,
		Begin: r.begin,
		End:   r.begin + int64(len(r.offsets)) - 1,
	}
}

// accepts reports whether a record of n data bytes fits without a rotation.
func (r *LogRegion) accepts(n int64, opts Options) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.offsets) == 0 {
		return true
	}
	if len(r.offsets) >= opts.RegionCapacity {
		return false
	}
	return r.dataSize+n <= opts.RegionThreshold
}

// file returns the open descriptor. A read racing Close either completes or fails
// with os.ErrClosed.
func (r *LogRegion) file() (*os.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fd == nil {
		return nil, r.closedErr()
	}
	return r.fd, nil
}

func (r *LogRegion) closedErr() error {
	return domain.StorageIo(os.ErrClosed, "region %s", r.path)
}

func (r *LogRegion) Force() error {
	fd, err := r.file()
	if err != nil {
		return err
	}
	if err := fd.Sync(); err != nil {
		return domain.StorageIo(err, "sync region %s", r.path)
	}
	return nil
}

// ReadEntry returns the record at globalIndex, or false if the region does not own it.
func (r *LogRegion) ReadEntry(globalIndex int64) (LogEntry, bool, error) {
	r.mu.RLock()
	pos := globalIndex - r.begin
	if pos < 0 || pos >= int64(len(r.offsets)) {
		r.mu.RUnlock()
		return LogEntry{}, false, nil
	}
	offset := r.offsets[pos]
	r.mu.RUnlock()

	entry, err := r.readAt(offset)
	if err != nil {
		return LogEntry{}, false, err
	}
	entry.Index = globalIndex
	return entry, true, nil
}

func (r *LogRegion) readAt(offset int64) (LogEntry, error) {
	fd, err := r.file()
	if err != nil {
		return LogEntry{}, err
	}
	var lenBuf [codec.IntLength]byte
	if _, err := fd.ReadAt(lenBuf[:], offset); err != nil {
		return LogEntry{}, domain.StorageIo(err, "read region %s at %d", r.path, offset)
	}
	frame := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := fd.ReadAt(frame, offset+codec.IntLength); err != nil {
		return LogEntry{}, domain.StorageIo(err, "read region %s at %d", r.path, offset)
	}
	entry, err := decodeRecord(frame)
	if err != nil {
		return LogEntry{}, errors.Wrapf(err, "region %s offset %d", r.path, offset)
	}
	return entry, nil
}

func (r *LogRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// r.fd will be nil if close is already called
	if r.fd != nil {
		if err := r.fd.Close(); err != nil {
			return err
		}
		r.fd = nil
	}
	return nil
}
