// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwio

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger replaces the logger shared by the backends. They log in two
// situations only: a teardown step failed (close and unmap errors are
// never returned to the caller) and pin access degraded to a slower
// mechanism. Passing nil restores the default, slog.Default.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// Logger returns the logger set with SetLogger.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
