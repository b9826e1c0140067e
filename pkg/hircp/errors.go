// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hircp

import (
	"errors"
	"fmt"
)

// LengthError reports a buffer or payload of the wrong size.
type LengthError struct {
	Op  string // "decode" or "payload"
	Got int
	Max int
}

func (e *LengthError) Error() string {
	if e.Op == "decode" {
		return fmt.Sprintf("hircp: %s: got %d bytes, want exactly %d", e.Op, e.Got, e.Max)
	}
	return fmt.Sprintf("hircp: %s: got %d bytes, max %d", e.Op, e.Got, e.Max)
}

// IsLengthError returns true if err is or wraps a *LengthError.
func IsLengthError(err error) bool {
	var le *LengthError
	return errors.As(err, &le)
}
