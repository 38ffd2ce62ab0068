// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sunxi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/rsbpmic/internal/rsb"
	"github.com/platinasystems/rsbpmic/internal/rsb/rsbsim"
	"github.com/platinasystems/rsbpmic/internal/test"
)

// regs is a register file that logs writes as "offset=value"
type regs struct {
	m   map[uintptr]uint32
	log []string
}

func newRegs() *regs { return &regs{m: make(map[uintptr]uint32)} }

func (r *regs) Read32(offset uintptr) uint32 { return r.m[offset] }

func (r *regs) Write32(offset uintptr, v uint32) {
	r.m[offset] = v
	r.log = append(r.log, fmt.Sprintf("%#x=%#x", offset, v))
}

func TestEnableRSB(t *testing.T) {
	assert := test.Assert{TB: t}
	pio, prcm := newRegs(), newRegs()
	pio.m[pioPLCfg0] = 0x77777777
	pio.m[pioPLDrv0] = 0x55555555
	pio.m[pioPLPull0] = 0
	prcm.m[prcmApb0Reset] = 0xffffffff

	s := &SoC{PIO: pio, PRCM: prcm}
	s.EnableRSB()

	assert.Hex(uint64(pio.m[pioPLCfg0]), 0x77777722)
	assert.Hex(uint64(pio.m[pioPLDrv0]), 0x5555555a)
	assert.Hex(uint64(pio.m[pioPLPull0]), 0x05)
	assert.Equal(strings.Join(pio.log, " "), "0x0=0x77777722 0x14=0x5555555a 0x1c=0x5")
	assert.Equal(strings.Join(prcm.log, " "),
		"0x28=0x1 0xb0=0xfffffff7 0xb0=0xffffffff 0x28=0x9")
}

func TestStartRSB(t *testing.T) {
	assert := test.Assert{TB: t}
	sim := rsbsim.New()
	sim.Busy = 3
	s := &SoC{RSB: sim, PIO: newRegs(), PRCM: newRegs()}

	c, err := s.StartRSB(0x3a3, 0x2d)
	assert.Nil(err)
	assert.Equal(strings.Join(sim.Events, ", "),
		"reset, speed 0x11d, mode 0x7c3e00, speed 0x103, assign 0x3a3 0x2d")

	sim.Chip.Regs[0x03] = 0x51
	v, err := c.Read(0x2d, 0x03)
	assert.Nil(err)
	assert.Hex(uint64(v), 0x51)
}

func TestStartRSBTimeout(t *testing.T) {
	assert := test.Assert{TB: t}
	sim := rsbsim.New()
	sim.Stuck = true
	prcm := newRegs()
	s := &SoC{RSB: sim, PIO: newRegs(), PRCM: prcm}

	c, err := s.StartRSB(0x3a3, 0x2d)
	assert.Error(err, rsb.ErrTimeout)
	assert.True(c == nil)
	// the prelude completes regardless
	assert.Hex(uint64(prcm.m[prcmApb0Gate]), 0x9)
	assert.Hex(uint64(sim.Reads[rsb.RegCTRL]), rsb.MaxTries)
}

func reg(cells ...uint32) []byte {
	b := make([]byte, 0, 4*len(cells))
	for _, c := range cells {
		b = append(b, byte(c>>24), byte(c>>16), byte(c>>8), byte(c))
	}
	return b
}

func node(name string, cells []uint32, compat string) *fdt.Node {
	return &fdt.Node{
		Name: name,
		Properties: map[string][]byte{
			"reg":        reg(cells...),
			"compatible": []byte(compat),
		},
	}
}

func TestMatch(t *testing.T) {
	assert := test.Assert{TB: t}
	b := Bases{}
	for _, x := range []struct {
		n     *fdt.Node
		cells int
	}{
		{node("rsb@1f03400", []uint32{0x01f03400, 0x400},
			"allwinner,sun50i-a64-rsb\x00allwinner,sun8i-a23-rsb\x00"), 1},
		{node("pinctrl@1f02c00", []uint32{0x01f02c00, 0x400},
			"allwinner,sun50i-a64-r-pinctrl\x00"), 1},
		{node("clock@1f01400", []uint32{0, 0x01f01400, 0, 0x100},
			"allwinner,sun50i-a64-r-ccu\x00"), 2},
		{node("serial@1c28000", []uint32{0x01c28000, 0x400},
			"snps,dw-apb-uart\x00"), 1},
		{node("rsb@0", nil, "allwinner,sun8i-a23-rsb\x00"), 1},
		// short of two address cells
		{node("rsb@1", []uint32{1}, "allwinner,sun8i-a23-rsb\x00"), 2},
	} {
		b.match(x.n, x.cells)
	}
	assert.True(b == DefaultBases)
}

func TestMatchOverride(t *testing.T) {
	assert := test.Assert{TB: t}
	b := DefaultBases
	b.match(node("rsb@7083000", []uint32{0x07083000, 0x400},
		"allwinner,sun8i-a23-rsb\x00"), 1)
	assert.Hex(uint64(b.RSB), 0x07083000)
	assert.Hex(uint64(b.PIO), 0x01f02c00)
	assert.Hex(uint64(b.PRCM), 0x01f01400)
}

// dtb builds a flattened device tree blob.
type dtb struct {
	st, strs bytes.Buffer
	offs     map[string]uint32
}

func (d *dtb) cell(v uint32) { binary.Write(&d.st, binary.BigEndian, v) }

func (d *dtb) pad() {
	for d.st.Len()%4 != 0 {
		d.st.WriteByte(0)
	}
}

func (d *dtb) begin(name string) {
	d.cell(1)
	d.st.WriteString(name)
	d.st.WriteByte(0)
	d.pad()
}

func (d *dtb) end() { d.cell(2) }

func (d *dtb) prop(name string, v []byte) {
	if d.offs == nil {
		d.offs = make(map[string]uint32)
	}
	off, found := d.offs[name]
	if !found {
		off = uint32(d.strs.Len())
		d.strs.WriteString(name)
		d.strs.WriteByte(0)
		d.offs[name] = off
	}
	d.cell(3)
	d.cell(uint32(len(v)))
	d.cell(off)
	d.st.Write(v)
	d.pad()
}

func (d *dtb) bytes() []byte {
	d.cell(9)
	const rsvmap = 40
	offStruct := rsvmap + 16
	offStrings := offStruct + d.st.Len()
	size := offStrings + d.strs.Len()
	b := new(bytes.Buffer)
	for _, v := range []uint32{
		0xd00dfeed,
		uint32(size),
		uint32(offStruct),
		uint32(offStrings),
		rsvmap,
		17,
		16,
		0,
		uint32(d.strs.Len()),
		uint32(d.st.Len()),
	} {
		binary.Write(b, binary.BigEndian, v)
	}
	b.Write(make([]byte, 16))
	b.Write(d.st.Bytes())
	b.Write(d.strs.Bytes())
	return b.Bytes()
}

func TestFromDTB(t *testing.T) {
	assert := test.Assert{TB: t}
	d := new(dtb)
	d.begin("")
	d.prop("#address-cells", reg(1))
	d.prop("#size-cells", reg(1))
	d.begin("soc")
	d.prop("#address-cells", reg(1))
	d.prop("#size-cells", reg(1))
	d.begin("rsb@1f03400")
	d.prop("compatible", []byte("allwinner,sun50i-a64-rsb\x00"))
	// two single cell pairs
	d.prop("reg", reg(0x01f03400, 0x400, 0x01f03800, 0x400))
	d.end()
	d.begin("pinctrl@1f02c00")
	d.prop("compatible", []byte("allwinner,sun50i-a64-r-pinctrl\x00"))
	d.prop("reg", reg(0x01f02c00, 0x400))
	d.end()
	d.end()
	d.begin("bus")
	d.prop("#address-cells", reg(2))
	d.prop("#size-cells", reg(2))
	d.begin("clock@1f01400")
	d.prop("compatible", []byte("allwinner,sun50i-a64-r-ccu\x00"))
	d.prop("reg", reg(0, 0x01f01400, 0, 0x100))
	d.end()
	d.end()
	d.end()

	b := Bases{}.FromDTB(d.bytes())
	assert.Hex(uint64(b.RSB), 0x01f03400)
	assert.Hex(uint64(b.PIO), 0x01f02c00)
	assert.Hex(uint64(b.PRCM), 0x01f01400)
}

func TestFromDTBNotABlob(t *testing.T) {
	assert := test.Assert{TB: t}
	assert.True(DefaultBases.FromDTB(nil) == DefaultBases)
	assert.True(DefaultBases.FromDTB(make([]byte, 64)) == DefaultBases)
}

func TestReadDTBMissing(t *testing.T) {
	assert := test.Assert{TB: t}
	b, err := DefaultBases.ReadDTB("/nonexistent/linux.dtb")
	assert.True(err != nil)
	assert.True(b == DefaultBases)
}
