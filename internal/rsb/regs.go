// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rsb

// Register offsets from the controller base.
const (
	RegCTRL   uintptr = 0x00
	RegCCR    uintptr = 0x04
	RegINTE   uintptr = 0x08
	RegSTAT   uintptr = 0x0c
	RegDADDR0 uintptr = 0x10
	RegDLEN   uintptr = 0x18
	RegDATA0  uintptr = 0x1c
	RegLCR    uintptr = 0x24
	RegPMCR   uintptr = 0x28
	RegCMD    uintptr = 0x2c
	RegSADDR  uintptr = 0x30

	// bytes spanned by the register block
	Size uintptr = 0x400
)

// Bus commands written to RegCMD before a transaction start.
// Only SRTA, RD8 and WR8 are issued by this driver.
const (
	CmdSRTA uint32 = 0xe8
	CmdRD8  uint32 = 0x8b
	CmdRD16 uint32 = 0x9c
	CmdRD32 uint32 = 0xa6
	CmdWR8  uint32 = 0x4e
	CmdWR16 uint32 = 0x59
	CmdWR32 uint32 = 0x63
)

const (
	ctrlSoftResetOff uint32 = 0
	CtrlSoftReset    uint32 = (1 << ctrlSoftResetOff)
	ctrlStartOff     uint32 = 7
	CtrlStart        uint32 = (1 << ctrlStartOff)
)

const (
	ccrDividerMask   uint32 = 0xff
	ccrCDOutDelayOff uint32 = 8
	// one cycle of CD output delay
	CcrCDOutDelay uint32 = (1 << ccrCDOutDelayOff)
)

const (
	pmcrModeMask uint32 = 0x00ffffff
	pmcrStartOff uint32 = 31
	PmcrStart    uint32 = (1 << pmcrStartOff)
)

// Status register values. A complete, acknowledged transaction reads back
// exactly StatTransOver.
const (
	StatTransOver   uint32 = 1 << 0
	StatTransErr    uint32 = 1 << 1
	StatLoadBusy    uint32 = 1 << 2
	StatErrDataMask uint32 = 0xf << 8
	StatErrAck      uint32 = 1 << 16
)

const (
	saddrRtOff = 16
	hwAddrMask = 0xfff
)
