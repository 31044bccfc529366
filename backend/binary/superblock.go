package binary

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
	"github.com/mwantia/vds/backend/codec"
)

// Signature identifies a container file.
var Signature = []byte{0x89, 'V', 'D', 'S', '\r', '\n', 0x1a, '\n'}

const (
	formatVersion uint8 = 1

	// superblockSize covers the fixed fields plus the trailing checksum.
	superblockSize = 72
	// initialDirCapacity is reserved for the directory of a new container.
	initialDirCapacity = 256
)

// superblock is the fixed header at offset 0. Writing it is the commit point
// of every update: it names the directory that describes the container.
type superblock struct {
	DirAddr     uint64
	DirSize     uint64
	DirCapacity uint64
	EOF         uint64
	ID          uuid.UUID
}

func (sb *superblock) encode() []byte {
	buf := codec.NewBuffer(make([]byte, 0, superblockSize))
	w := codec.NewWriter(buf)

	w.WriteBytes(Signature)
	w.WriteUint8(formatVersion)
	w.WriteZeros(7)
	w.WriteUint64(sb.DirAddr)
	w.WriteUint64(sb.DirSize)
	w.WriteUint64(sb.DirCapacity)
	w.WriteUint64(sb.EOF)
	w.WriteBytes(sb.ID[:])
	w.WriteUint32(crc32.ChecksumIEEE(buf.Bytes()))
	w.WriteZeros(superblockSize - int(w.Pos()))

	return buf.Bytes()
}

func decodeSuperblock(b []byte) (*superblock, error) {
	if len(b) < superblockSize {
		return nil, fmt.Errorf("superblock truncated to %d bytes", len(b))
	}
	if !bytes.Equal(b[:len(Signature)], Signature) {
		return nil, fmt.Errorf("missing container signature")
	}

	r := codec.NewReader(codec.NewBuffer(b))
	r.Skip(int64(len(Signature)))

	version, _ := r.ReadUint8()
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}
	r.Skip(7)

	sb := &superblock{}
	sb.DirAddr, _ = r.ReadUint64()
	sb.DirSize, _ = r.ReadUint64()
	sb.DirCapacity, _ = r.ReadUint64()
	sb.EOF, _ = r.ReadUint64()
	id, _ := r.ReadBytes(16)
	copy(sb.ID[:], id)

	end := r.Pos()
	checksum, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(b[:end]) != checksum {
		return nil, fmt.Errorf("superblock checksum mismatch")
	}

	if sb.DirSize > sb.DirCapacity || sb.DirAddr < superblockSize || sb.DirAddr+sb.DirCapacity > sb.EOF {
		return nil, fmt.Errorf("superblock describes an invalid directory block")
	}

	return sb, nil
}
