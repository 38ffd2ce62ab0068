// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rsb drives the Allwinner Reduced Serial Bus controller.
//
// The controller moves a PMIC from its power-on I2C mode to RSB, assigns it
// a runtime address, then performs single byte register transactions. Every
// wait is a counted busy poll of a controller bit; there is no interrupt,
// timer or cancellation.
//
// A Controller has no locking; callers serialize transactions.
package rsb

import (
	"github.com/platinasystems/log"

	"github.com/platinasystems/rsbpmic/internal/mmio"
)

// MaxTries is the default poll budget.
const MaxTries = 100000

// Source clock and bus rates of the mode switch and operating phases.
const (
	SourceHz    uint32 = 24000000
	HandshakeHz uint32 = 400000
	OperatingHz uint32 = 3000000
)

// ModeRSB is the I2C write of 0x7c to PMIC register 0x3e that switches a
// listening device to RSB.
const ModeRSB uint32 = 0x7c3e00

type Controller struct {
	// Tries bounds each poll; zero means MaxTries.
	Tries int

	regs mmio.Registers
}

func New(regs mmio.Registers) *Controller {
	return &Controller{Tries: MaxTries, regs: regs}
}

func (c *Controller) tries() int {
	if c.Tries <= 0 {
		return MaxTries
	}
	return c.Tries
}

// Init resets the controller, switches the device at the given hardware
// address to RSB and binds it to the runtime address. It stops at the first
// error without undoing prior steps.
func (c *Controller) Init(hw uint16, rt uint8) (err error) {
	if err = c.Reset(); err != nil {
		return
	}
	// Start with 400 KHz to issue the I2C->RSB switch command.
	if err = c.SetBusSpeed(SourceHz, HandshakeHz); err != nil {
		return
	}
	if err = c.SetDeviceMode(ModeRSB); err != nil {
		return
	}
	if err = c.SetBusSpeed(SourceHz, OperatingHz); err != nil {
		return
	}
	return c.AssignRuntimeAddress(hw, rt)
}

// Reset soft resets the controller; it must precede any transaction.
func (c *Controller) Reset() error {
	c.regs.Write32(RegCTRL, CtrlSoftReset)
	return c.pollBit("RSB: reset controller", RegCTRL, CtrlSoftReset)
}

// SetBusSpeed programs the clock divider for the bus rate derived from the
// source rate. The divider has no acknowledgment.
func (c *Controller) SetBusSpeed(sourceHz, busHz uint32) error {
	if busHz == 0 {
		return ErrInvalid
	}
	div := sourceHz / busHz
	if div < 2 {
		return ErrInvalid
	}
	c.regs.Write32(RegCCR, CCR(div))
	return nil
}

// CCR is the clock control value for the given raw source/bus divisor.
func CCR(div uint32) uint32 {
	return (div/2 - 1) | CcrCDOutDelay
}

// SetDeviceMode has the controller issue the given 24-bit payload as a
// plain I2C write. This is the only transaction a device hears before it
// speaks RSB.
func (c *Controller) SetDeviceMode(mode uint32) error {
	c.regs.Write32(RegPMCR, (mode&pmcrModeMask)|PmcrStart)
	return c.pollBit("RSB: set device to RSB", RegPMCR, PmcrStart)
}

// AssignRuntimeAddress associates the 8-bit runtime address with the
// 12-bit hardware address.
func (c *Controller) AssignRuntimeAddress(hw uint16, rt uint8) error {
	c.regs.Write32(RegSADDR, uint32(hw&hwAddrMask)|uint32(rt)<<saddrRtOff)
	c.regs.Write32(RegCMD, CmdSRTA)
	c.regs.Write32(RegCTRL, CtrlStart)
	return c.waitStatus("RSB: set run-time address")
}

// pollBit reads the register until the masked bits clear, at most Tries
// times.
func (c *Controller) pollBit(desc string, offset uintptr, mask uint32) error {
	for n := c.tries(); n > 0; n-- {
		if c.regs.Read32(offset)&mask == 0 {
			return nil
		}
	}
	log.Print(desc, ": timed out")
	return ErrTimeout
}

// waitStatus polls the start bit then insists on a clean TransOver status;
// anything else, zero included, is the device's error.
func (c *Controller) waitStatus(desc string) error {
	if err := c.pollBit(desc, RegCTRL, CtrlStart); err != nil {
		return err
	}
	stat := c.regs.Read32(RegSTAT)
	if stat == StatTransOver {
		return nil
	}
	log.Printf("%s: %#x", desc, stat)
	return StatusError(stat)
}
