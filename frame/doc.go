// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame keeps several frames in flight on a single graphics
// queue without the CPU overwriting anything the GPU still reads.
//
// A [Ring] holds [FramesInFlight] slots, each with its own recorder,
// fence and semaphores. Frame n uses slot n % FramesInFlight and
// waits on that slot's fence before recording, so the CPU is never
// more than FramesInFlight frames ahead. [Image] and [Buffer] track
// the synchronization state of resources shared between frames and
// are the only way to emit barriers. A [Sequencer] submits and
// presents each frame in a fixed order.
//
// Precondition violations panic with a [gpu.AssertionError].
package frame
