// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmd

import (
	"strings"
	"testing"

	"github.com/platinasystems/rsbpmic/internal/test"
)

func TestSwap(t *testing.T) {
	assert := test.Assert{TB: t}
	for _, x := range []struct {
		args, expect string
	}{
		{"pmic -man", "man pmic"},
		{"pmic --usage", "usage pmic"},
		{"pmic -h", "help pmic"},
		{"-apropos", "apropos"},
		{"--help pmic", "help pmic"},
		{"pmic -i2c 1 read 0", "pmic -i2c 1 read 0"},
		{"pmic", "pmic"},
	} {
		args := strings.Fields(x.args)
		Swap(args)
		assert.Equal(strings.Join(args, " "), x.expect)
	}
}

func TestKind(t *testing.T) {
	assert := test.Assert{TB: t}
	assert.Equal(Kind(0).String(), "interactive")
	assert.Equal(Daemon.String(), "daemon")
	assert.Equal((Daemon | DontFork).String(), "don't fork, daemon")
	assert.True(Daemon.IsDaemon())
	assert.False(Daemon.IsInteractive())
	assert.True(Kind(0).IsInteractive())
}
