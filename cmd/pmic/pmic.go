// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/rsbpmic/internal/axp803"
	"github.com/platinasystems/rsbpmic/internal/rsb"
	"github.com/platinasystems/rsbpmic/internal/rsb/rsbsim"
	"github.com/platinasystems/rsbpmic/internal/sunxi"
	"github.com/platinasystems/rsbpmic/lang"
)

type Command struct {
	// Bases of the SoC blocks if not from -dtb; default, sunxi.DefaultBases
	Bases *sunxi.Bases

	// PMIC, if set, is used instead of opening one.
	PMIC *axp803.PMIC

	Stdout io.Writer
}

func (*Command) String() string { return "pmic" }

func (*Command) Usage() string {
	return "pmic [-sim] [-i2c BUS] [-dtb FILE] COMMAND [ARG]..."
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "AXP803 power management IC",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Access the PMIC over the reduced serial bus (RSB). Unless -i2c, this
	first resets the RSB controller, switches the PMIC from I2C to RSB
	and assigns its runtime address.

	read REG		print register
	write REG VALUE		write register
	clrset REG CLR SET	clear then set register bits
	data OFF [VALUE]	read or write scratch data register 0-11
	dump			print all registers
	status			print, then clear, power status
	init			configure charger and regulators
	poweroff		power off the system
	reboot			power cycle the system

	REG, VALUE, CLR and SET may be decimal, 0x hex, or 0 octal.

OPTIONS
	-sim		use a simulated controller and PMIC
	-i2c BUS	use the PMIC at I2C BUS address 0x34
	-dtb FILE	find the SoC blocks in this device tree blob`,
	}
}

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "-sim")
	parm, args := parms.New(args, "-i2c", "-dtb")

	if len(args) == 0 {
		return errors.New("COMMAND: missing")
	}
	name, args := args[0], args[1:]
	sub, found := subcommands[name]
	if !found {
		return fmt.Errorf("%s: unknown", name)
	}
	if len(args) < sub.min {
		return fmt.Errorf("%s: missing %s", name, sub.args)
	} else if len(args) > sub.max {
		return fmt.Errorf("%v: unexpected", args[sub.max:])
	}
	v := make([]uint8, len(args))
	for i, arg := range args {
		u, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		v[i] = uint8(u)
	}

	p, done, err := c.open(flag.ByName["-sim"], parm.ByName["-i2c"],
		parm.ByName["-dtb"])
	if err != nil {
		return err
	}
	defer done()

	w := c.Stdout
	if w == nil {
		w = os.Stdout
	}
	return sub.main(p, w, v)
}

func (c *Command) open(sim bool, bus, dtb string) (*axp803.PMIC, func() error, error) {
	nop := func() error { return nil }
	switch {
	case c.PMIC != nil:
		return c.PMIC, nop, nil
	case sim:
		ctrl := rsb.New(rsbsim.New())
		if err := ctrl.Init(axp803.HwAddr, axp803.RtAddr); err != nil {
			return nil, nil, err
		}
		return axp803.New(ctrl.Device(axp803.RtAddr)), nop, nil
	case len(bus) > 0:
		n, err := strconv.Atoi(bus)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", bus, err)
		}
		return axp803.New(axp803.NewI2C(n)), nop, nil
	}
	bases := sunxi.DefaultBases
	if c.Bases != nil {
		bases = *c.Bases
	}
	if len(dtb) > 0 {
		var err error
		if bases, err = bases.ReadDTB(dtb); err != nil {
			return nil, nil, err
		}
	}
	p, soc, err := axp803.Open(bases)
	if err != nil {
		return nil, nil, err
	}
	return p, soc.Close, nil
}

type subcommand struct {
	args     string
	min, max int
	main     func(p *axp803.PMIC, w io.Writer, v []uint8) error
}

var subcommands = map[string]subcommand{
	"read": {"REG", 1, 1, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		x, err := p.Read(v[0])
		if err == nil {
			fmt.Fprintf(w, "%#x\n", x)
		}
		return err
	}},
	"write": {"REG VALUE", 2, 2, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		return p.Write(v[0], v[1])
	}},
	"clrset": {"REG CLR SET", 3, 3, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		return p.ClrSetBits(v[0], v[1], v[2])
	}},
	"data": {"OFF", 1, 2, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		if len(v) > 1 {
			return p.WriteData(uint(v[0]), v[1])
		}
		x, err := p.ReadData(uint(v[0]))
		if err == nil {
			fmt.Fprintf(w, "%#x\n", x)
		}
		return err
	}},
	"dump": {"", 0, 0, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		return p.DumpRegisters(w)
	}},
	"status": {"", 0, 0, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		return p.DumpStatus(w)
	}},
	"init": {"", 0, 0, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		return p.Init()
	}},
	"poweroff": {"", 0, 0, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		p.Poweroff()
		return nil
	}},
	"reboot": {"", 0, 0, func(p *axp803.PMIC, w io.Writer, v []uint8) error {
		p.Reboot()
		return nil
	}},
}
