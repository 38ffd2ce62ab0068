// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmic

import (
	"bytes"
	"strings"
	"testing"

	"github.com/platinasystems/rsbpmic/internal/axp803"
	"github.com/platinasystems/rsbpmic/internal/rsb"
	"github.com/platinasystems/rsbpmic/internal/rsb/rsbsim"
	"github.com/platinasystems/rsbpmic/internal/test"
)

func newTestCommand() (*Command, *rsbsim.Controller, *bytes.Buffer) {
	sim := rsbsim.New()
	sim.Attach(axp803.RtAddr)
	p := axp803.New(rsb.New(sim).Device(axp803.RtAddr))
	p.Halt = func() { panic("halted") }
	out := new(bytes.Buffer)
	return &Command{PMIC: p, Stdout: out}, sim, out
}

func TestReadWrite(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, out := newTestCommand()
	sim.Chip.Regs[0x21] = 0x4b

	assert.Nil(c.Main("read", "0x21"))
	assert.Equal(out.String(), "0x4b\n")

	assert.Nil(c.Main("write", "0x30", "42"))
	assert.Hex(uint64(sim.Chip.Regs[0x30]), 42)

	sim.Chip.Regs[0x31] = 0xaa
	assert.Nil(c.Main("clrset", "0x31", "0x0f", "0x03"))
	assert.Hex(uint64(sim.Chip.Regs[0x31]), 0xa3)
}

func TestData(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, out := newTestCommand()

	assert.Nil(c.Main("data", "3", "0x5a"))
	assert.Hex(uint64(sim.Chip.Regs[0x07]), 0x5a)
	assert.Nil(c.Main("data", "3"))
	assert.Equal(out.String(), "0x5a\n")

	n := len(sim.Writes)
	assert.Error(c.Main("data", "12", "1"), axp803.ErrOutOfRange)
	assert.True(len(sim.Writes) == n)
}

func TestStatus(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, out := newTestCommand()
	sim.Chip.Regs[axp803.RegPowerStatus] = 0x20
	sim.Chip.Regs[axp803.RegPowerUpStatus] = 0x02

	assert.Nil(c.Main("status"))
	assert.Equal(out.String(),
		"  PMIC power up by USB power\n  VBUS present\n  Battery absent\n")
	assert.Hex(uint64(sim.Chip.Regs[axp803.RegPowerUpStatus]), 0)
}

func TestDumpInit(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, out := newTestCommand()

	assert.Nil(c.Main("init"))
	assert.Hex(uint64(sim.Chip.Regs[0x3b]), 0x88)
	assert.Hex(uint64(sim.Chip.Regs[0x36]), 0x08)

	assert.Nil(c.Main("dump"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.True(len(lines) == 1+axp803.NRegs)
	assert.Equal(lines[1+0x3b], "3b: 88")
}

func TestPoweroff(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, _ := newTestCommand()
	defer func() {
		assert.True(recover() == "halted")
		assert.Hex(uint64(sim.Chip.Regs[axp803.RegPowerOff]), 0x80)
	}()
	c.Main("poweroff")
	t.Fatal("poweroff returned")
}

func TestRebootFailure(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, _ := newTestCommand()
	sim.Fail[rsb.CmdRD8] = rsb.StatTransErr
	defer func() {
		assert.True(recover() == "halted")
		assert.Hex(uint64(sim.Chip.Regs[axp803.RegWakeup]), 0)
	}()
	c.Main("reboot")
	t.Fatal("reboot returned")
}

func TestSim(t *testing.T) {
	assert := test.Assert{TB: t}
	out := new(bytes.Buffer)
	c := &Command{Stdout: out}
	assert.Nil(c.Main("-sim", "status"))
	assert.Equal(out.String(), "  VBUS absent\n  Battery absent\n")
}

func TestErrors(t *testing.T) {
	assert := test.Assert{TB: t}
	c, sim, _ := newTestCommand()
	assert.Error(c.Main(), "COMMAND: missing")
	assert.Error(c.Main("frob"), "frob: unknown")
	assert.Error(c.Main("write", "0x30"), "write: missing REG VALUE")
	assert.Error(c.Main("read", "1", "2"), "[2]: unexpected")
	assert.Match(c.Main("read", "0x100").Error(), "^0x100: .*out of range")
	assert.Match((&Command{}).Main("-i2c", "x", "read", "0").Error(),
		"^x: .*invalid syntax")
	assert.True(len(sim.Writes) == 0)

	sim.Fail[rsb.CmdRD8] = rsb.StatTransErr
	assert.Error(c.Main("read", "0"), rsb.StatusError(rsb.StatTransErr))
}
