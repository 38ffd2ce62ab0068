// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the goes machine of an Allwinner A64/H5 board with an AXP803 PMIC
// on the reduced serial bus.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/platinasystems/log"

	"github.com/platinasystems/rsbpmic/cmd"
	"github.com/platinasystems/rsbpmic/cmd/pmic"
	"github.com/platinasystems/rsbpmic/cmd/pmicd"
	"github.com/platinasystems/rsbpmic/internal/goes"
	"github.com/platinasystems/rsbpmic/internal/sunxi"
	"github.com/platinasystems/rsbpmic/lang"
)

const name = "goes-pmic"

var bases = sunxi.DefaultBases

var Goes = &goes.Goes{
	NAME: name,
	APROPOS: lang.Alt{
		lang.EnUS: "sunxi AXP803 power management",
	},
	ByName: map[string]cmd.Cmd{
		"pmic": &pmic.Command{
			Bases: &bases,
		},
		"pmicd": &pmicd.Command{
			Init:  basesInit,
			Bases: &bases,
		},
	},
}

// basesInit replaces the default bases with those of the running kernel's
// device tree, if there is one.
func basesInit() {
	b, err := sunxi.DefaultBases.ReadDTB(sunxi.DefaultDTB)
	if err != nil {
		log.Print("notice: ", err, "; using default RSB bases")
		return
	}
	bases = b
}

func main() {
	args := os.Args[1:]
	if base := filepath.Base(os.Args[0]); base != name {
		// run as a command symlink
		args = append([]string{base}, args...)
	}
	if err := Goes.Main(args...); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}
