// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })

	defer func() {
		v := recover()
		require.NotNil(t, v)
		ae, ok := v.(*AssertionError)
		require.True(t, ok)
		assert.Equal(t, "slot 3 out of range", ae.Msg)
		assert.Equal(t, "errors_test.go", filepath.Base(ae.File))
		assert.Greater(t, ae.Line, 0)
		assert.Contains(t, ae.Error(), "errors_test.go:")
	}()
	Assert(false, "slot %d out of range", 3)
}

func TestCheckErr(t *testing.T) {
	run := func(fn func()) (err error) {
		defer CheckErr(&err)
		fn()
		return nil
	}
	assert.NoError(t, run(func() {}))

	err := run(func() { IfPanic(ErrDeviceLost) })
	assert.ErrorIs(t, err, ErrDeviceLost)

	err = run(func() { Assert(false, "bad") })
	var ae *AssertionError
	assert.True(t, errors.As(err, &ae))

	err = run(func() { panic("plain") })
	assert.EqualError(t, err, "plain")
}

func TestIfPanicFinalizers(t *testing.T) {
	ran := 0
	assert.NotPanics(t, func() { IfPanic(nil, func() { ran++ }) })
	assert.Equal(t, 0, ran)
	assert.Panics(t, func() { IfPanic(ErrTimeout, func() { ran++ }) })
	assert.Equal(t, 1, ran)
}
