package fel

import (
	"github.com/snksoft/crc"
)

// mbrCRCTable is shared across calls the way nkt/telegram.go keeps a single
// crc.Table for its XMODEM checksums.
var mbrCRCTable = crc.NewTable(crc.XMODEM)

// localMBRChecksum computes a client-side XMODEM CRC over an MBR image.
// This is not part of the wire protocol (the device's own
// VerifyStatusResponse.CRC is the authoritative check); it is a pre-flight
// sanity gate so a caller can tell a corrupted image from a rejected write
// before spending a 65536-byte transfer on it.
func localMBRChecksum(mbr []byte) uint16 {
	c := mbrCRCTable.InitCrc()
	c = mbrCRCTable.UpdateCrc(c, mbr)
	return mbrCRCTable.CRC16(c)
}
