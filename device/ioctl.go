package device

// ioctl encoding (asm-generic).
//
//	bits 0-7:   command number (nr)
//	bits 8-15:  ioctl type (type)
//	bits 16-29: argument size (size)
//	bits 30-31: direction (dir)
const (
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uint32) uint32 {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func ior(typ, nr, size uint32) uint32 { return ioc(iocRead, typ, nr, size) }

func iow(typ, nr, size uint32) uint32 { return ioc(iocWrite, typ, nr, size) }

// ioctlType is the magic number of the stack device.
const ioctlType = 'k'

// ElementSize is the wire size of one stack element.
const ElementSize = 4

// Control commands.
var (
	// IoctlSetSize resizes the stack to the int32 argument (0x40046B01).
	IoctlSetSize = iow(ioctlType, 1, ElementSize)

	// IoctlGetCount writes the current depth to the argument (0x80046B02).
	IoctlGetCount = ior(ioctlType, 2, ElementSize)
)
