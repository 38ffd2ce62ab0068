// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sunxi maps the Allwinner always-on (R_) register blocks that the
// RSB controller depends on and brings up its pins, reset and clock gate.
package sunxi

import (
	"github.com/platinasystems/log"

	"github.com/platinasystems/rsbpmic/internal/mmio"
	"github.com/platinasystems/rsbpmic/internal/rsb"
)

// Bases are the physical addresses of the register blocks.
type Bases struct {
	RSB  uintptr
	PIO  uintptr
	PRCM uintptr
}

// DefaultBases are those of the A64/H5 family.
var DefaultBases = Bases{
	RSB:  0x01f03400,
	PIO:  0x01f02c00,
	PRCM: 0x01f01400,
}

const (
	pioSize  uintptr = 0x400
	prcmSize uintptr = 0x400
)

// R_PRCM
const (
	prcmApb0Gate  uintptr = 0x28
	prcmApb0Reset uintptr = 0xb0

	apb0GatePIOOff uint32 = 0
	apb0GatePIO    uint32 = 1 << apb0GatePIOOff
	apb0RSBOff     uint32 = 3
	apb0RSB        uint32 = 1 << apb0RSBOff
)

// R_PIO port L, pins PL0 (SCK) and PL1 (SDA)
const (
	pioPLCfg0  uintptr = 0x00
	pioPLDrv0  uintptr = 0x14
	pioPLPull0 uintptr = 0x1c

	plCfgMask  uint32 = 0xff
	plCfgRSB   uint32 = 0x22 // function 2, s_rsb
	plDrvMask  uint32 = 0x0f
	plDrvLvl2  uint32 = 0x0a
	plPullMask uint32 = 0x0f
	plPullUp   uint32 = 0x05
)

// SoC is the set of register blocks used to start the RSB controller.
type SoC struct {
	RSB  mmio.Registers
	PIO  mmio.Registers
	PRCM mmio.Registers

	windows []*mmio.Window
}

// Open maps the register blocks at the given bases.
func Open(b Bases) (*SoC, error) {
	s := &SoC{}
	for _, x := range []struct {
		reg  *mmio.Registers
		base uintptr
		size uintptr
	}{
		{&s.RSB, b.RSB, rsb.Size},
		{&s.PIO, b.PIO, pioSize},
		{&s.PRCM, b.PRCM, prcmSize},
	} {
		w, err := mmio.Map(x.base, x.size)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.windows = append(s.windows, w)
		*x.reg = w
	}
	return s, nil
}

func (s *SoC) Close() (err error) {
	for _, w := range s.windows {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}
	s.windows = nil
	return
}

// EnableRSB gates the R_PIO clock, muxes PL0 and PL1 to the RSB function
// with drive level 2 and pull-up, then pulses the RSB reset and gates its
// clock.
func (s *SoC) EnableRSB() {
	mmio.SetBits(s.PRCM, prcmApb0Gate, apb0GatePIO)

	mmio.ClrSetBits(s.PIO, pioPLCfg0, plCfgMask, plCfgRSB)
	mmio.ClrSetBits(s.PIO, pioPLDrv0, plDrvMask, plDrvLvl2)
	mmio.ClrSetBits(s.PIO, pioPLPull0, plPullMask, plPullUp)

	mmio.ClrBits(s.PRCM, prcmApb0Reset, apb0RSB)
	mmio.SetBits(s.PRCM, prcmApb0Reset, apb0RSB)

	mmio.SetBits(s.PRCM, prcmApb0Gate, apb0RSB)
}

// StartRSB enables the controller and hands the device at hw address the
// rt runtime address.
func (s *SoC) StartRSB(hw uint16, rt uint8) (*rsb.Controller, error) {
	s.EnableRSB()
	c := rsb.New(s.RSB)
	if err := c.Init(hw, rt); err != nil {
		log.Print("RSB: init failed: ", err)
		return nil, err
	}
	return c, nil
}
