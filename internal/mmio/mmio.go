// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mmio provides 32-bit memory mapped register windows.
//
// A window is an opaque handle to a block of device registers; callers only
// see offsets from the block base, never a pointer.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"
)

const DevMem = "/dev/mem"

// Registers is a block of 32-bit device registers addressed by byte offset
// from the block base. Every Read32 reflects current hardware state.
type Registers interface {
	Read32(offset uintptr) uint32
	Write32(offset uintptr, v uint32)
}

// Window is a /dev/mem mapping of a register block.
type Window struct {
	Base uintptr
	Size uintptr

	file *os.File
	mem  []byte
	// offset of Base within the page aligned mapping
	skew uintptr
}

// Map the register block of given size at physical address base.
func Map(base, size uintptr) (w *Window, err error) {
	w = &Window{Base: base, Size: size}
	defer func() {
		if err != nil {
			w.Close()
			w = nil
		}
	}()

	page := uintptr(os.Getpagesize())
	start := base &^ (page - 1)
	w.skew = base - start
	n := (w.skew + size + page - 1) &^ (page - 1)

	w.file, err = os.OpenFile(DevMem, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return
	}
	w.mem, err = syscall.Mmap(int(w.file.Fd()), int64(start), int(n),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		err = fmt.Errorf("mmap %s @ %#x: %w", DevMem, start, err)
	}
	return
}

func (w *Window) Close() (err error) {
	if w.mem != nil {
		err = syscall.Munmap(w.mem)
		w.mem = nil
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	return
}

func (w *Window) String() string {
	return fmt.Sprintf("%#08x-%#08x", w.Base, w.Base+w.Size-1)
}

func (w *Window) reg(offset uintptr) *uint32 {
	if offset&3 != 0 {
		panic(fmt.Errorf("%v: misaligned register offset %#x", w, offset))
	}
	if offset+4 > w.Size {
		panic(fmt.Errorf("%v: register offset %#x out of range", w, offset))
	}
	return (*uint32)(unsafe.Pointer(&w.mem[w.skew+offset]))
}

func (w *Window) Read32(offset uintptr) uint32 {
	return atomic.LoadUint32(w.reg(offset))
}

func (w *Window) Write32(offset uintptr, v uint32) {
	atomic.StoreUint32(w.reg(offset), v)
}

func SetBits(r Registers, offset uintptr, set uint32) {
	r.Write32(offset, r.Read32(offset)|set)
}

func ClrBits(r Registers, offset uintptr, clr uint32) {
	r.Write32(offset, r.Read32(offset)&^clr)
}

func ClrSetBits(r Registers, offset uintptr, clr, set uint32) {
	r.Write32(offset, (r.Read32(offset)&^clr)|set)
}
