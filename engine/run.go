// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"time"

	"cogentcore.org/vkframe/gpu"
)

// rateInterval is how often [Engine.Run] logs the frame rate.
const rateInterval = 5 * time.Second

// Run renders frames until more returns false or, if limit is
// positive, until limit frames have been submitted, and then
// terminates e. more is called before every frame, which is where the
// application polls its window events. A suboptimal surface is logged
// and rendering goes on; any other frame error stops it.
//
// A panic while rendering, such as a failed assertion, is recovered
// into the returned error and e is left unterminated, because waiting
// for the device after one may never return.
func (e *Engine) Run(more func() bool, limit uint64) (err error) {
	defer gpu.CheckErr(&err)
	err = e.render(more, limit)
	e.Terminate()
	return err
}

func (e *Engine) render(more func() bool, limit uint64) error {
	start, last := time.Now(), e.frame
	for more() && (limit == 0 || e.frame < limit) {
		if err := e.AdvanceFrame(); err != nil {
			if !onlySuboptimal(err) {
				return err
			}
			e.log.Warn("suboptimal swapchain", "frame", e.frame)
		}
		if dur := time.Since(start); dur > rateInterval {
			n := e.frame - last
			e.log.Info("frame rate", "fps", float64(n)/dur.Seconds(), "frames", e.frame)
			start, last = time.Now(), e.frame
		}
	}
	return nil
}

// onlySuboptimal returns whether every error joined into err is
// [gpu.ErrSuboptimal].
func onlySuboptimal(err error) bool {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, je := range j.Unwrap() {
			if !onlySuboptimal(je) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, gpu.ErrSuboptimal) && !errors.Is(err, gpu.ErrOutOfDate)
}
