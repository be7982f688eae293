package squashfs

import "encoding/binary"

// Inode contains a block number + offset within that block.
type Inode int64

const (
	magic             = 0x73717368
	metadataBlockSize = 8192
)

// Compression ids, from the superblock's Compression field.
const (
	compressionGZIP = 1 + iota
	compressionLZMA
	compressionLZO
	compressionXZ
	compressionLZ4
	compressionZSTD
)

// Explanations partly copied from
// https://dr-emann.github.io/squashfs/squashfs.html#_the_superblock
type superblock struct {
	Magic               uint32
	Inodes              uint32
	MkfsTime            int32
	BlockSize           uint32
	Fragments           uint32
	Compression         uint16
	BlockLog            uint16
	Flags               uint16
	NoIds               uint16
	Major               uint16
	Minor               uint16
	RootInode           Inode
	BytesUsed           int64
	IdTableStart        int64
	XattrIdTableStart   int64
	InodeTableStart     int64
	DirectoryTableStart int64
	FragmentTableStart  int64
	LookupTableStart    int64
}

const (
	dirType = 1 + iota
	fileType
	symlinkType
	blkdevType
	chrdevType
	fifoType
	socketType
	// The larger types are used for e.g. sparse files, xattrs, etc.
	ldirType
	lregType
	lsymlinkType
	lblkdevType
	lchrdevType
	lfifoType
	lsocketType
)

// https://dr-emann.github.io/squashfs/squashfs.html#_common_inode_header
type inodeHeader struct {
	InodeType   uint16
	Mode        uint16
	Uid         uint16
	Gid         uint16
	Mtime       int32
	InodeNumber uint32
}

// fileType
type regInodeHeader struct {
	inodeHeader
	StartBlock uint32
	Fragment   uint32
	Offset     uint32
	FileSize   uint32
}

// lregType
type lregInodeHeader struct {
	inodeHeader
	StartBlock uint64
	FileSize   uint64
	Sparse     uint64
	Nlink      uint32
	Fragment   uint32
	Offset     uint32
	Xattr      uint32
}

// symlinkType
type symlinkInodeHeader struct {
	inodeHeader
	Nlink       uint32
	SymlinkSize uint32
}

// chrdevType and blkdevType
type devInodeHeader struct {
	inodeHeader
	Nlink uint32
	Rdev  uint32
}

// fifoType and socketType
type ipcInodeHeader struct {
	inodeHeader
	Nlink uint32
}

// dirType
type dirInodeHeader struct {
	inodeHeader
	StartBlock  uint32
	Nlink       uint32
	FileSize    uint16
	Offset      uint16
	ParentInode uint32
}

// ldirType
type ldirInodeHeader struct {
	inodeHeader
	Nlink       uint32
	FileSize    uint32
	StartBlock  uint32
	ParentInode uint32
	Icount      uint16
	Offset      uint16
	Xattr       uint32
}

// https://dr-emann.github.io/squashfs/squashfs.html#_directory_table
type dirHeader struct {
	Count       uint32
	StartBlock  uint32
	InodeOffset uint32
}

func (d *dirHeader) Unmarshal(b []byte) {
	_ = b[11]
	e := binary.LittleEndian
	d.Count = e.Uint32(b)
	d.StartBlock = e.Uint32(b[4:])
	d.InodeOffset = e.Uint32(b[8:])
}

// https://dr-emann.github.io/squashfs/squashfs.html#_directory_table
type dirEntry struct {
	Offset      uint16
	InodeNumber int16
	EntryType   uint16
	Size        uint16
}

func (d *dirEntry) Unmarshal(b []byte) {
	_ = b[7]
	e := binary.LittleEndian
	d.Offset = e.Uint16(b)
	d.InodeNumber = int16(e.Uint16(b[2:]))
	d.EntryType = e.Uint16(b[4:])
	d.Size = e.Uint16(b[6:])
}
