// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package axp803 is a client of the X-Powers AXP803 PMIC.
package axp803

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/rsbpmic/internal/sunxi"
)

// RSB identity of the PMIC.
const (
	HwAddr uint16 = 0x3a3
	RtAddr uint8  = 0x2d
)

// I2C address before the switch to RSB.
const I2CAddr = 0x34

const NRegs = 0x80

const (
	RegPowerStatus   uint8 = 0x00
	RegModeStatus    uint8 = 0x01
	RegPowerUpStatus uint8 = 0x02
	RegData0         uint8 = 0x04
	RegDCDC2Voltage  uint8 = 0x21
	RegBCDetect      uint8 = 0x2c
	RegVBUSPath      uint8 = 0x30
	RegWakeup        uint8 = 0x31
	RegPowerOff      uint8 = 0x32
	RegPOK           uint8 = 0x36
	RegDCDCFreq      uint8 = 0x3b

	// NData scratch registers survive a power cycle while the battery
	// holds.
	NData = 12
)

const (
	wakeupSoftRestartOff uint8 = 6
	WakeupSoftRestart    uint8 = 1 << wakeupSoftRestartOff
	powerOffOff          uint8 = 7
	PowerOff             uint8 = 1 << powerOffOff
)

var ErrOutOfRange = errors.New("data offset out of range")

// Bus is a byte register transport to the PMIC.
type Bus interface {
	ReadReg(reg uint8) (uint8, error)
	WriteReg(reg, v uint8) error
	ClrSetBits(reg, clr, set uint8) error
}

type PMIC struct {
	Bus Bus
	// Halt is called after a power off or restart command. It never
	// returns.
	Halt func()

	mutex sync.Mutex
}

func New(bus Bus) *PMIC {
	return &PMIC{Bus: bus, Halt: hang}
}

// Attach brings up RSB on the SoC and returns a client of the PMIC at its
// runtime address.
func Attach(soc *sunxi.SoC) (*PMIC, error) {
	c, err := soc.StartRSB(HwAddr, RtAddr)
	if err != nil {
		return nil, err
	}
	return New(c.Device(RtAddr)), nil
}

// Open maps the SoC blocks at the given bases then attaches the PMIC. Close
// the returned SoC after the last PMIC transaction.
func Open(b sunxi.Bases) (*PMIC, *sunxi.SoC, error) {
	soc, err := sunxi.Open(b)
	if err != nil {
		return nil, nil, err
	}
	p, err := Attach(soc)
	if err != nil {
		soc.Close()
		return nil, nil, err
	}
	return p, soc, nil
}

func hang() {
	for {
		time.Sleep(time.Hour)
	}
}

func (p *PMIC) Read(reg uint8) (uint8, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.Bus.ReadReg(reg)
}

func (p *PMIC) Write(reg, v uint8) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.Bus.WriteReg(reg, v)
}

func (p *PMIC) ClrSetBits(reg, clr, set uint8) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.Bus.ClrSetBits(reg, clr, set)
}

func (p *PMIC) SetBits(reg, set uint8) error { return p.ClrSetBits(reg, 0, set) }
func (p *PMIC) ClrBits(reg, clr uint8) error { return p.ClrSetBits(reg, clr, 0) }

func (p *PMIC) ReadData(off uint) (uint8, error) {
	if off >= NData {
		return 0, ErrOutOfRange
	}
	return p.Read(RegData0 + uint8(off))
}

func (p *PMIC) WriteData(off uint, v uint8) error {
	if off >= NData {
		return ErrOutOfRange
	}
	return p.Write(RegData0+uint8(off), v)
}

// Init configures the board's charger and regulators.
func (p *PMIC) Init() error {
	for _, x := range []struct {
		reg, v uint8
	}{
		// DCDC PWM frequency spread
		{RegDCDCFreq, 0x88},
		// DCDC2 (CPUX) at 1.3V; ramps at 2.5mV/us so allow 160us before
		// raising the CPU clock
		{RegDCDC2Voltage, 0x4b},
		// 2A VBUS limit without SDP, 4.5V Vhold
		{RegVBUSPath, 0x02 | 5<<3},
		// charger detection
		{RegBCDetect, 0x95},
		// short POK reaction times
		{RegPOK, 0x08},
	} {
		if err := p.Write(x.reg, x.v); err != nil {
			return err
		}
	}
	return nil
}

// DumpRegisters writes each register as a "REG: VALUE" hex line. A register
// that can't be read is marked and the dump continues; the first error is
// returned.
func (p *PMIC) DumpRegisters(w io.Writer) (err error) {
	fmt.Fprintln(w, "Dumping PMIC registers:")
	for reg := 0; reg < NRegs; reg++ {
		v, rerr := p.Read(uint8(reg))
		if rerr != nil {
			fmt.Fprintf(w, "%x: error: %v\n", reg, rerr)
			if err == nil {
				err = fmt.Errorf("%#x: %w", reg, rerr)
			}
			continue
		}
		fmt.Fprintf(w, "%x: %x\n", reg, v)
	}
	return
}

// Poweroff shuts the PMIC down and never returns. The system is halted even
// if the command could not be issued.
func (p *PMIC) Poweroff() {
	if err := p.SetBits(RegPowerOff, PowerOff); err != nil {
		log.Print("PMIC power off: ", err)
	} else {
		log.Print("notice: PMIC power off")
	}
	p.halt()
	panic("PMIC power off returned")
}

// Reboot is a soft power restart that never returns.
func (p *PMIC) Reboot() {
	if err := p.SetBits(RegWakeup, WakeupSoftRestart); err != nil {
		log.Print("PMIC restart: ", err)
	} else {
		log.Print("notice: PMIC restart")
	}
	p.halt()
	panic("PMIC restart returned")
}

func (p *PMIC) halt() {
	if p.Halt != nil {
		p.Halt()
	} else {
		hang()
	}
}
