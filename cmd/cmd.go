// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmd

import (
	"strings"

	"github.com/platinasystems/rsbpmic/lang"
)

type Cmd interface {
	Apropos() lang.Alt
	Main(...string) error
	// String returns the command name.
	String() string
	Usage() string
	/* Optional
	Close() error
	Help(...string) string
	Kind() Kind
	Man() lang.Alt
	*/
}

const (
	DontFork Kind = 1 << iota
	Daemon
	Hidden
	CantPipe
)

type Kind uint16

type kinder interface {
	Kind() Kind
}

func WhatKind(v Cmd) Kind {
	if m, found := v.(kinder); found {
		return m.Kind()
	}
	return 0
}

func (k Kind) IsDontFork() bool    { return (k & DontFork) == DontFork }
func (k Kind) IsDaemon() bool      { return (k & Daemon) == Daemon }
func (k Kind) IsHidden() bool      { return (k & Hidden) == Hidden }
func (k Kind) IsInteractive() bool { return (k & (Daemon | Hidden)) == 0 }
func (k Kind) IsCantPipe() bool    { return (k & CantPipe) == CantPipe }

func (k Kind) String() string {
	var ss []string
	for _, x := range []struct {
		k Kind
		s string
	}{
		{DontFork, "don't fork"},
		{Daemon, "daemon"},
		{Hidden, "hidden"},
		{CantPipe, "can't pipe"},
	} {
		if k&x.k == x.k {
			ss = append(ss, x.s)
		}
	}
	if len(ss) == 0 {
		return "interactive"
	}
	return strings.Join(ss, ", ")
}

var Helpers = map[string]struct{}{
	"apropos": struct{}{},
	"help":    struct{}{},
	"man":     struct{}{},
	"usage":   struct{}{},
}

// Swap hyphen prefaced helper flags with command, so,
//
//	COMMAND -[-]HELPER [ARGS]...
//
// becomes
//
//	HELPER COMMAND [ARGS]...
//
// and
//
//	-[-]HELPER [ARGS]...
//
// becomes
//
//	HELPER [ARGS]...
func Swap(args []string) {
	n := len(args)
	if n > 0 && strings.HasPrefix(args[0], "-") {
		opt := strings.TrimLeft(args[0], "-")
		if opt == "h" {
			opt = "help"
		}
		if _, found := Helpers[opt]; found {
			args[0] = opt
		}
	} else if n > 1 && strings.HasPrefix(args[1], "-") {
		opt := strings.TrimLeft(args[1], "-")
		if opt == "h" {
			opt = "help"
		}
		if _, found := Helpers[opt]; found {
			args[1] = args[0]
			args[0] = opt
		}
	}
}
