// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rsbsim simulates an RSB controller register block with a single
// PMIC on the bus. It's a drop-in mmio.Registers for tests and for running
// the commands without hardware.
package rsbsim

import (
	"fmt"
	"sync"

	"github.com/platinasystems/rsbpmic/internal/rsb"
)

// Chip is the simulated bus device.
type Chip struct {
	HwAddr uint16
	// RtAddr is valid once Assigned.
	RtAddr   uint8
	Assigned bool
	// RSB is set by the mode switch write; until then the chip ignores
	// RSB commands.
	RSB bool
	// registers that clear the bits written as one
	W1C  map[uint8]bool
	Regs [256]uint8
}

type Write struct {
	Offset uintptr
	Value  uint32
}

func (w Write) String() string {
	return fmt.Sprintf("%02x=%x", w.Offset, w.Value)
}

type Controller struct {
	Chip Chip

	// Busy is the number of polls that see a started operation incomplete.
	Busy int
	// Stuck operations never complete.
	Stuck bool
	// Fail reports the mapped status instead of executing the command.
	Fail map[uint32]uint32

	// Events logs the completed bus operations in order.
	Events []string
	Writes []Write
	Reads  map[uintptr]int

	mutex   sync.Mutex
	regs    map[uintptr]uint32
	pending *pending
}

type pending struct {
	offset uintptr
	mask   uint32
	left   int
	done   func()
}

// New returns a controller with an AXP803 attached but not yet switched to
// RSB.
func New() *Controller {
	return &Controller{
		Chip: Chip{
			HwAddr: 0x3a3,
			W1C:    map[uint8]bool{0x02: true},
		},
		Fail:  make(map[uint32]uint32),
		Reads: make(map[uintptr]int),
		regs:  make(map[uintptr]uint32),
	}
}

func (c *Controller) Read32(offset uintptr) uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Reads[offset]++
	v := c.regs[offset]
	if p := c.pending; p != nil && p.offset == offset && !c.Stuck {
		if p.left > 0 {
			p.left--
		} else {
			c.pending = nil
			v &^= p.mask
			c.regs[offset] = v
			p.done()
		}
	}
	return v
}

func (c *Controller) Write32(offset uintptr, v uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Writes = append(c.Writes, Write{offset, v})
	c.regs[offset] = v
	switch offset {
	case rsb.RegCTRL:
		if v&rsb.CtrlSoftReset != 0 {
			c.start(offset, rsb.CtrlSoftReset, c.reset)
		} else if v&rsb.CtrlStart != 0 {
			c.start(offset, rsb.CtrlStart, c.transfer)
		}
	case rsb.RegCCR:
		c.Events = append(c.Events, fmt.Sprintf("speed %#x", v))
	case rsb.RegPMCR:
		if v&rsb.PmcrStart != 0 {
			c.start(offset, rsb.PmcrStart, c.modeSwitch)
		}
	}
}

// Ops returns the values written at the given offset.
func (c *Controller) Ops(offset uintptr) (ops []uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, w := range c.Writes {
		if w.Offset == offset {
			ops = append(ops, w.Value)
		}
	}
	return
}

// Attach puts the chip directly in RSB mode at the given runtime address.
func (c *Controller) Attach(rt uint8) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Chip.RSB = true
	c.Chip.RtAddr = rt
	c.Chip.Assigned = true
}

func (c *Controller) start(offset uintptr, mask uint32, done func()) {
	c.pending = &pending{
		offset: offset,
		mask:   mask,
		left:   c.Busy,
		done:   done,
	}
}

func (c *Controller) reset() {
	for k := range c.regs {
		c.regs[k] = 0
	}
	c.Events = append(c.Events, "reset")
}

func (c *Controller) modeSwitch() {
	mode := c.regs[rsb.RegPMCR] &^ rsb.PmcrStart
	if mode == rsb.ModeRSB {
		c.Chip.RSB = true
	}
	c.Events = append(c.Events, fmt.Sprintf("mode %#x", mode))
}

func (c *Controller) transfer() {
	cmd := c.regs[rsb.RegCMD]
	saddr := c.regs[rsb.RegSADDR]
	rt := uint8(saddr >> 16)
	if stat, found := c.Fail[cmd]; found {
		c.regs[rsb.RegSTAT] = stat
		return
	}
	nak := func() {
		c.regs[rsb.RegSTAT] = rsb.StatTransErr | rsb.StatErrAck
	}
	ok := func(s string) {
		c.regs[rsb.RegSTAT] = rsb.StatTransOver
		c.Events = append(c.Events, s)
	}
	chip := &c.Chip
	switch cmd {
	case rsb.CmdSRTA:
		if !chip.RSB || uint16(saddr&0xfff) != chip.HwAddr {
			nak()
			return
		}
		chip.RtAddr, chip.Assigned = rt, true
		ok(fmt.Sprintf("assign %#x %#x", chip.HwAddr, rt))
	case rsb.CmdRD8:
		if !chip.RSB || !chip.Assigned || rt != chip.RtAddr {
			nak()
			return
		}
		reg := uint8(c.regs[rsb.RegDADDR0])
		c.regs[rsb.RegDATA0] = uint32(chip.Regs[reg])
		ok(fmt.Sprintf("read %#x", reg))
	case rsb.CmdWR8:
		if !chip.RSB || !chip.Assigned || rt != chip.RtAddr {
			nak()
			return
		}
		reg := uint8(c.regs[rsb.RegDADDR0])
		v := uint8(c.regs[rsb.RegDATA0])
		if chip.W1C[reg] {
			chip.Regs[reg] &^= v
		} else {
			chip.Regs[reg] = v
		}
		ok(fmt.Sprintf("write %#x %#x", reg, v))
	default:
		c.regs[rsb.RegSTAT] = rsb.StatTransErr
	}
}
