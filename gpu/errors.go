// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

var (
	// ErrOutOfDate is returned when the surface changed and the
	// swapchain can no longer present to it.
	ErrOutOfDate = errors.New("gpu: surface out of date")

	// ErrSuboptimal is returned when presentation still works but the
	// swapchain no longer matches the surface exactly.
	ErrSuboptimal = errors.New("gpu: surface suboptimal")

	// ErrTimeout is returned when a wait expires.
	ErrTimeout = errors.New("gpu: wait timed out")

	// ErrDeviceLost is returned when the device stopped responding.
	ErrDeviceLost = errors.New("gpu: device lost")
)

// AssertionError is the panic value of a failed [Assert].
type AssertionError struct {
	Msg  string
	File string
	Line int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s:%d: assertion failed: %s", filepath.Base(e.File), e.Line, e.Msg)
}

// Assert panics with an [*AssertionError] naming the caller's file and
// line when cond is false. It guards preconditions whose violation
// means the program is wrong, not that the environment failed.
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	panic(&AssertionError{Msg: fmt.Sprintf(format, args...), File: file, Line: line})
}

// IfPanic runs finalizers and panics if err is non-nil.
func IfPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

// CheckErr recovers a panic into *err. Use as a deferred call at
// the top of a function that should report panics as errors.
func CheckErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}
