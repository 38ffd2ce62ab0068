// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes runs a machine's commands by name.
package goes

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/platinasystems/log"

	"github.com/platinasystems/rsbpmic/cmd"
	"github.com/platinasystems/rsbpmic/lang"
)

type Goes struct {
	NAME    string
	USAGE   string
	APROPOS lang.Alt
	MAN     lang.Alt
	ByName  map[string]cmd.Cmd

	// Stdout of the helpers; default, os.Stdout
	Stdout io.Writer
}

func (g *Goes) String() string { return g.NAME }

// Names returns the sorted names of the interactive commands.
func (g *Goes) Names() []string {
	names := make([]string, 0, len(g.ByName))
	for name, v := range g.ByName {
		if cmd.WhatKind(v).IsHidden() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Main runs the args[0] command or helper.
//
//	COMMAND -[-]HELPER [ARGS]...
//
// is run as
//
//	HELPER COMMAND [ARGS]...
//
// A daemon is closed on SIGTERM.
func (g *Goes) Main(args ...string) error {
	if len(args) == 0 {
		return errors.New(Usage(g))
	}
	cmd.Swap(args)
	name := args[0]
	args = args[1:]
	switch name {
	case "apropos":
		return g.apropos(args...)
	case "help":
		return g.help(args...)
	case "man":
		return g.man(args...)
	case "usage":
		return g.usage(args...)
	}
	v := g.ByName[name]
	if v == nil {
		return fmt.Errorf("%s: command not found", name)
	}
	k := cmd.WhatKind(v)
	if k.IsDaemon() {
		if closer, found := v.(io.Closer); found {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGTERM)
			defer func() {
				signal.Stop(sig)
				close(sig)
			}()
			go wait(name, sig, closer)
		}
	}
	err := v.Main(args...)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		if k.IsDaemon() {
			log.Print(name, ": ", err)
		}
		err = fmt.Errorf("%s: %w", name, err)
	}
	return err
}

func (g *Goes) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

func wait(name string, sig chan os.Signal, closer io.Closer) {
	if _, ok := <-sig; !ok {
		return
	}
	log.Print("notice: ", name, ": terminated")
	if err := closer.Close(); err != nil {
		log.Print(name, ": ", err)
	}
}
