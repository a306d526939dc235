package descriptors

import "fmt"

// BinaryCodedDecimal is a release number such as bcdUSB or bcdUVC, e.g. 0x0200 for 2.00.
type BinaryCodedDecimal uint16

func (bcd BinaryCodedDecimal) String() string {
	return fmt.Sprintf("%x.%02x", uint16(bcd)>>8, uint16(bcd)&0xff)
}
