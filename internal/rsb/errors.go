// Copyright © 2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rsb

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout = errors.New("timed out")
	ErrInvalid = errors.New("invalid argument")
)

// StatusError is the raw status register value of a completed transaction
// that didn't read back StatTransOver.
type StatusError uint32

func (e StatusError) Error() string {
	return fmt.Sprintf("status %#x", uint32(e))
}

// Code is the negated status, the driver's historical error number.
func (e StatusError) Code() int { return -int(e) }
