// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package axp803

import (
	"fmt"
	"io"
)

// Status is a snapshot of the status registers.
type Status struct {
	Power   uint8
	Mode    uint8
	PowerUp uint8
}

const (
	powerVBUS        uint8 = 1 << 5
	powerBatteryHigh uint8 = 1 << 3
	powerCharging    uint8 = 1 << 2

	modeBatteryPresent uint8 = 1 << 5
	modeBatteryValid   uint8 = 1 << 4
	modeSafe           uint8 = 1 << 3

	powerUpPOK  uint8 = 1 << 0
	powerUpUSB  uint8 = 1 << 1
	powerUpUVLO uint8 = 1 << 5
)

// ReadStatus reads the status registers then clears the power up status.
// The clear is issued even if a read failed; the first error is returned.
func (p *PMIC) ReadStatus() (s Status, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, x := range []struct {
		reg uint8
		v   *uint8
	}{
		{RegPowerStatus, &s.Power},
		{RegModeStatus, &s.Mode},
		{RegPowerUpStatus, &s.PowerUp},
	} {
		v, rerr := p.Bus.ReadReg(x.reg)
		if rerr != nil {
			if err == nil {
				err = rerr
			}
			continue
		}
		*x.v = v
	}
	if werr := p.Bus.WriteReg(RegPowerUpStatus, 0xff); err == nil {
		err = werr
	}
	return
}

// DumpStatus reads, clears and writes the status.
func (p *PMIC) DumpStatus(w io.Writer) error {
	s, err := p.ReadStatus()
	if err != nil {
		return err
	}
	_, err = s.WriteTo(w)
	return err
}

func (s Status) VBUS() bool         { return s.Power&powerVBUS != 0 }
func (s Status) BatteryHigh() bool  { return s.Power&powerBatteryHigh != 0 }
func (s Status) Charging() bool     { return s.Power&powerCharging != 0 }
func (s Status) SafeMode() bool     { return s.Mode&modeSafe != 0 }
func (s Status) PowerUpByPOK() bool { return s.PowerUp&powerUpPOK != 0 }
func (s Status) PowerUpByUSB() bool { return s.PowerUp&powerUpUSB != 0 }
func (s Status) UVLO() bool         { return s.PowerUp&powerUpUVLO != 0 }

func (s Status) Battery() bool {
	const mask = modeBatteryPresent | modeBatteryValid
	return s.Mode&mask == mask
}

// Lines describe the status, one fact per line.
func (s Status) Lines() []string {
	var lines []string
	if s.PowerUpByPOK() {
		lines = append(lines, "PMIC power up by POK")
	}
	if s.PowerUpByUSB() {
		lines = append(lines, "PMIC power up by USB power")
	}
	if s.UVLO() {
		lines = append(lines, "PMIC UVLO!")
	}
	lines = append(lines, "VBUS "+presence(s.VBUS()))
	if !s.Battery() {
		return append(lines, "Battery absent")
	}
	if s.BatteryHigh() {
		lines = append(lines, "Battery >3.5V")
	} else {
		lines = append(lines, "Battery <3.5V")
	}
	if s.Charging() {
		lines = append(lines, "Battery charging")
	} else {
		lines = append(lines, "Battery discharging")
	}
	if s.SafeMode() {
		lines = append(lines, "Battery in SAFE mode")
	}
	return lines
}

func (s Status) WriteTo(w io.Writer) (n int64, err error) {
	for _, l := range s.Lines() {
		var i int
		i, err = fmt.Fprintf(w, "  %s\n", l)
		n += int64(i)
		if err != nil {
			return
		}
	}
	return
}

func presence(t bool) string {
	if t {
		return "present"
	}
	return "absent"
}
