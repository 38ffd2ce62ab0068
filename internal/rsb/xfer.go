// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rsb

// Read a byte from the register of the device at the runtime address.
func (c *Controller) Read(rt, reg uint8) (uint8, error) {
	c.regs.Write32(RegCMD, CmdRD8)
	c.regs.Write32(RegSADDR, uint32(rt)<<saddrRtOff)
	c.regs.Write32(RegDADDR0, uint32(reg))
	c.regs.Write32(RegCTRL, CtrlStart)

	if err := c.waitStatus("RSB: read command"); err != nil {
		return 0, err
	}
	return uint8(c.regs.Read32(RegDATA0) & 0xff), nil
}

// Write a byte to the register of the device at the runtime address.
func (c *Controller) Write(rt, reg, v uint8) error {
	c.regs.Write32(RegCMD, CmdWR8)
	c.regs.Write32(RegSADDR, uint32(rt)<<saddrRtOff)
	c.regs.Write32(RegDADDR0, uint32(reg))
	c.regs.Write32(RegDATA0, uint32(v))
	c.regs.Write32(RegCTRL, CtrlStart)

	return c.waitStatus("RSB: write command")
}

// ClrSetBits rewrites the register with clr bits cleared and set bits set.
// The read and write are separate transactions.
func (c *Controller) ClrSetBits(rt, reg, clr, set uint8) error {
	v, err := c.Read(rt, reg)
	if err != nil {
		return err
	}
	return c.Write(rt, reg, (v&^clr)|set)
}

// Device is a controller bound to one runtime address.
type Device struct {
	c    *Controller
	Addr uint8
}

func (c *Controller) Device(rt uint8) Device {
	return Device{c, rt}
}

func (d Device) ReadReg(reg uint8) (uint8, error) {
	return d.c.Read(d.Addr, reg)
}

func (d Device) WriteReg(reg, v uint8) error {
	return d.c.Write(d.Addr, reg, v)
}

func (d Device) ClrSetBits(reg, clr, set uint8) error {
	return d.c.ClrSetBits(d.Addr, reg, clr, set)
}
