// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package axp803

import (
	"sync"

	"github.com/platinasystems/i2c"
)

// I2C is the PMIC bus before (or instead of) the switch to RSB.
type I2C struct {
	Bus  int
	Addr int

	mutex sync.Mutex
}

func NewI2C(bus int) *I2C {
	return &I2C{Bus: bus, Addr: I2CAddr}
}

func (d *I2C) ReadReg(reg uint8) (uint8, error) {
	var sd i2c.SMBusData
	err := d.do(i2c.Read, reg, &sd)
	return sd[0], err
}

func (d *I2C) WriteReg(reg, v uint8) error {
	var sd i2c.SMBusData
	sd[0] = v
	return d.do(i2c.Write, reg, &sd)
}

func (d *I2C) ClrSetBits(reg, clr, set uint8) error {
	v, err := d.ReadReg(reg)
	if err != nil {
		return err
	}
	return d.WriteReg(reg, (v&^clr)|set)
}

func (d *I2C) do(rw i2c.RW, reg uint8, sd *i2c.SMBusData) (err error) {
	var bus i2c.Bus

	d.mutex.Lock()
	defer d.mutex.Unlock()

	err = bus.Open(d.Bus)
	if err != nil {
		return
	}
	defer bus.Close()

	err = bus.ForceSlaveAddress(d.Addr)
	if err != nil {
		return
	}

	err = bus.Do(rw, reg, i2c.ByteData, sd)
	return
}
