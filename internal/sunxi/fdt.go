// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sunxi

import (
	"encoding/binary"
	"os"
	"strings"

	"github.com/platinasystems/fdt"
)

// DefaultDTB is where goes machines find the running kernel's device tree.
const DefaultDTB = "/boot/linux.dtb"

// FromDTB returns a copy of b with the base of every block described by the
// flattened device tree replaced by its first reg address.
func (b Bases) FromDTB(dtb []byte) Bases {
	if len(dtb) < fdtHeaderSize || binary.BigEndian.Uint32(dtb) != fdtMagic {
		return b
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	t.Parse(dtb)
	if t.RootNode != nil {
		b.walk(t.RootNode, defaultAddressCells)
	}
	return b
}

// ReadDTB is FromDTB of the named file.
func (b Bases) ReadDTB(fn string) (Bases, error) {
	dtb, err := os.ReadFile(fn)
	if err != nil {
		return b, err
	}
	return b.FromDTB(dtb), nil
}

const (
	fdtMagic      = 0xd00dfeed
	fdtHeaderSize = 40

	defaultAddressCells = 2
)

// walk matches each node with the #address-cells of its parent.
func (b *Bases) walk(n *fdt.Node, cells int) {
	b.match(n, cells)
	children := defaultAddressCells
	if v := n.Properties["#address-cells"]; len(v) == 4 {
		children = int(binary.BigEndian.Uint32(v))
	}
	for _, c := range n.Children {
		b.walk(c, children)
	}
}

func (b *Bases) match(n *fdt.Node, cells int) {
	compatible, found := n.Properties["compatible"]
	if !found {
		return
	}
	base, found := regBase(n.Properties["reg"], cells)
	if !found {
		return
	}
	for _, compat := range strings.Split(string(compatible), "\x00") {
		switch {
		case strings.HasSuffix(compat, "-rsb"):
			b.RSB = base
		case strings.HasSuffix(compat, "-r-pinctrl"):
			b.PIO = base
		case strings.HasSuffix(compat, "-r-ccu"),
			strings.HasSuffix(compat, "-r-prcm"):
			b.PRCM = base
		default:
			continue
		}
		return
	}
}

// regBase decodes the address of the first reg entry of one or two cells.
func regBase(reg []byte, cells int) (uintptr, bool) {
	if len(reg) < 4*cells {
		return 0, false
	}
	switch cells {
	case 1:
		return uintptr(binary.BigEndian.Uint32(reg)), true
	case 2:
		return uintptr(binary.BigEndian.Uint64(reg)), true
	}
	return 0, false
}
