// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cogentcore.org/vkframe/frame"
	"cogentcore.org/vkframe/gpu"
	"cogentcore.org/vkframe/gpu/fakegpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *fakegpu.Device, *fakegpu.Swapchain) {
	t.Helper()
	d := fakegpu.NewDevice()
	d.Latency = time.Millisecond
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 320, Height: 240}, 3)
	e := New(&Context{Device: d, Swapchain: sc, Config: cfg})
	require.NoError(t, e.Initialize(320, 240))
	return e, d, sc
}

// frameSubmissions returns the submissions made by the frame ring,
// leaving out one-off uploads.
func frameSubmissions(d *fakegpu.Device) []fakegpu.Submission {
	var subs []fakegpu.Submission
	for _, s := range d.Submissions() {
		if strings.HasPrefix(s.Fence, "in-flight-") && len(s.Commands) > 0 {
			subs = append(subs, s)
		}
	}
	return subs
}

// requireAssertion runs fn and returns the assertion it fails.
func requireAssertion(t *testing.T, fn func()) *gpu.AssertionError {
	t.Helper()
	var ae *gpu.AssertionError
	func() {
		defer func() { ae, _ = recover().(*gpu.AssertionError) }()
		fn()
	}()
	require.NotNil(t, ae, "expected an assertion failure")
	return ae
}

func TestEndToEnd(t *testing.T) {
	e, d, _ := newTestEngine(t, nil)
	for range 10 {
		require.NoError(t, e.AdvanceFrame())
	}
	assert.Equal(t, uint64(10), e.Frame())
	e.Terminate()

	assert.Equal(t, 10, d.Count(fakegpu.EventAcquire))
	assert.Equal(t, 10, d.Count(fakegpu.EventPresent))
	// one immediate submission uploads the vertices, then one per frame
	assert.Equal(t, 11, d.Count(fakegpu.EventSubmit))
	assert.Len(t, d.Submissions(), 11)
	assert.Len(t, frameSubmissions(d), 10)
	assert.Empty(t, d.ValidationErrors())
	assert.Empty(t, d.Live())
}

func TestFrameCommandChain(t *testing.T) {
	e, d, _ := newTestEngine(t, nil)
	for range 3 {
		require.NoError(t, e.AdvanceFrame())
	}
	e.Terminate()

	subs := frameSubmissions(d)
	require.Len(t, subs, 3)
	want := []fakegpu.Op{
		fakegpu.OpBufferBarrier, fakegpu.OpUpdateBuffer, fakegpu.OpBufferBarrier,
		fakegpu.OpImageBarrier, fakegpu.OpBindPipeline, fakegpu.OpDispatch,
		fakegpu.OpImageBarrier, fakegpu.OpBeginRendering, fakegpu.OpBindPipeline, fakegpu.OpDraw, fakegpu.OpEndRendering,
		fakegpu.OpImageBarrier, fakegpu.OpImageBarrier, fakegpu.OpBlit,
		fakegpu.OpImageBarrier,
	}
	for i, sub := range subs {
		cmds := sub.Commands[fmt.Sprintf("frame-%d", i%frame.FramesInFlight)]
		require.Len(t, cmds, len(want), "frame %d", i)
		for j, c := range cmds {
			assert.Equal(t, want[j], c.Op, "frame %d command %d", i, j)
		}

		var layouts []string
		for _, c := range cmds {
			if c.Op == fakegpu.OpImageBarrier {
				b := c.ImageBarrier
				layouts = append(layouts, fmt.Sprintf("%s %s>%s", b.Image.Label(), b.OldLayout, b.NewLayout))
			}
		}
		swap := cmds[12].ImageBarrier.Image.Label()
		assert.Equal(t, []string{
			fmt.Sprintf("offscreen %s>%s", gpu.LayoutUndefined, gpu.LayoutGeneral),
			fmt.Sprintf("offscreen %s>%s", gpu.LayoutGeneral, gpu.LayoutColorAttachmentOptimal),
			fmt.Sprintf("offscreen %s>%s", gpu.LayoutColorAttachmentOptimal, gpu.LayoutTransferSrcOptimal),
			fmt.Sprintf("%s %s>%s", swap, gpu.LayoutUndefined, gpu.LayoutTransferDstOptimal),
			fmt.Sprintf("%s %s>%s", swap, gpu.LayoutTransferDstOptimal, gpu.LayoutPresentSrc),
		}, layouts, "frame %d", i)

		assert.Equal(t, [3]uint32{20, 15, 1}, cmds[5].Groups)
		assert.Equal(t, uint32(3), cmds[9].Vertices)
		assert.Equal(t, gpu.LoadOpLoad, cmds[7].Rendering.LoadOp)
		assert.Equal(t, gpu.FilterNearest, cmds[13].Blit.Filter)

		data := cmds[1].Data
		require.Len(t, data, ParamsSize)
		assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(data[20:]))
	}
}

func TestCrossFrameHazards(t *testing.T) {
	e, d, _ := newTestEngine(t, nil)
	for range 2 {
		require.NoError(t, e.AdvanceFrame())
	}
	e.Terminate()

	cmds := frameSubmissions(d)[1].Commands["frame-1"]
	// the params buffer was last read by the compute shader of the
	// previous frame
	pb := cmds[0].BufferBarrier
	assert.True(t, pb.SrcStages.Covers(gpu.StageComputeShader))
	assert.Equal(t, gpu.StageTransfer, pb.DstStages)

	// the offscreen image was last read by the previous blit
	ob := cmds[3].ImageBarrier
	assert.Equal(t, "offscreen", ob.Image.Label())
	assert.True(t, ob.SrcStages.Covers(gpu.StageTransfer))
}

func TestSwapchainBarriersFollowAcquire(t *testing.T) {
	e, d, _ := newTestEngine(t, nil)
	for range 4 {
		require.NoError(t, e.AdvanceFrame())
	}
	e.Terminate()

	subs := frameSubmissions(d)
	require.Len(t, subs, 4)
	for i, sub := range subs {
		require.Len(t, sub.WaitStages, 1)
		wait := sub.WaitStages[0]
		first := true
		for _, c := range sub.Commands[fmt.Sprintf("frame-%d", i%frame.FramesInFlight)] {
			if c.Op != fakegpu.OpImageBarrier || !strings.HasPrefix(c.ImageBarrier.Image.Label(), "swapchain-") {
				continue
			}
			b := c.ImageBarrier
			if first {
				assert.Equal(t, gpu.LayoutUndefined, b.OldLayout, "frame %d", i)
				first = false
			}
			assert.True(t, b.SrcStages.ChainsAfter(wait), "frame %d: %s src %s does not follow wait %s",
				i, b.Image.Label(), b.SrcStages, wait)
		}
		assert.False(t, first, "frame %d has no swapchain barrier", i)
	}
}

func TestRenderScale(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	cfg.RenderScale = 0.5
	e, d, _ := newTestEngine(t, cfg)
	assert.Equal(t, gpu.Extent2D{Width: 160, Height: 120}, e.RenderExtent())
	require.NoError(t, e.AdvanceFrame())
	e.Terminate()

	cmds := frameSubmissions(d)[0].Commands["frame-0"]
	blit := cmds[13].Blit
	assert.Equal(t, gpu.FullRect(gpu.Extent2D{Width: 160, Height: 120}), blit.SrcRegion)
	assert.Equal(t, gpu.FullRect(gpu.Extent2D{Width: 320, Height: 240}), blit.DstRegion)
	assert.Equal(t, [3]uint32{10, 8, 1}, cmds[5].Groups)
	assert.Empty(t, d.ValidationErrors())
}

func TestAcquireOutOfDateSkipsFrame(t *testing.T) {
	e, d, sc := newTestEngine(t, nil)
	sc.FailAcquire(3, gpu.ErrOutOfDate)
	require.NoError(t, e.AdvanceFrame())
	require.NoError(t, e.AdvanceFrame())
	err := e.AdvanceFrame()
	assert.ErrorIs(t, err, gpu.ErrOutOfDate)
	assert.Equal(t, uint64(2), e.Frame())

	for range 3 {
		require.NoError(t, e.AdvanceFrame())
	}
	assert.Equal(t, uint64(5), e.Frame())
	e.Terminate()
	assert.Equal(t, 5, d.Count(fakegpu.EventPresent))
	assert.Empty(t, d.ValidationErrors())
	assert.Empty(t, d.Live())
}

func TestSuboptimalCompletesFrame(t *testing.T) {
	e, d, sc := newTestEngine(t, nil)
	sc.FailAcquire(1, gpu.ErrSuboptimal)
	sc.FailPresent(2, gpu.ErrSuboptimal)

	err := e.AdvanceFrame()
	assert.ErrorIs(t, err, gpu.ErrSuboptimal)
	err = e.AdvanceFrame()
	assert.ErrorIs(t, err, gpu.ErrSuboptimal)
	require.NoError(t, e.AdvanceFrame())
	assert.Equal(t, uint64(3), e.Frame())
	e.Terminate()
	assert.Equal(t, 3, d.Count(fakegpu.EventPresent))
	assert.Empty(t, d.ValidationErrors())
}

func TestPresentOutOfDate(t *testing.T) {
	e, d, sc := newTestEngine(t, nil)
	sc.FailPresent(1, gpu.ErrOutOfDate)
	err := e.AdvanceFrame()
	assert.ErrorIs(t, err, gpu.ErrOutOfDate)
	assert.Contains(t, err.Error(), "presenting image 0")
	// the frame was submitted, so it counts
	assert.Equal(t, uint64(1), e.Frame())
	require.NoError(t, e.AdvanceFrame())
	e.Terminate()
	assert.Empty(t, d.ValidationErrors())
}

func TestRetire(t *testing.T) {
	e, d, _ := newTestEngine(t, nil)
	require.NoError(t, e.AdvanceFrame())
	retired := false
	e.Retire(func() { retired = true })
	require.NoError(t, e.AdvanceFrame())
	assert.False(t, retired)
	require.NoError(t, e.AdvanceFrame())
	assert.True(t, retired)

	waits := d.EventsOf(fakegpu.EventWaitFence, "in-flight-1")
	assert.NotEmpty(t, waits)
	e.Terminate()
}

func TestLifecycleAssertions(t *testing.T) {
	d := fakegpu.NewDevice()
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 2)
	e := New(&Context{Device: d, Swapchain: sc})

	ae := requireAssertion(t, func() { e.AdvanceFrame() })
	assert.Contains(t, ae.Msg, "before initialize")
	requireAssertion(t, e.Terminate)

	require.NoError(t, e.Initialize(8, 8))
	requireAssertion(t, func() { e.Initialize(8, 8) })
	e.Terminate()
	ae = requireAssertion(t, e.Terminate)
	assert.Contains(t, ae.Msg, "terminated twice")
	requireAssertion(t, func() { e.AdvanceFrame() })
	assert.Empty(t, d.Live())
}

func TestInitializeInvalidSize(t *testing.T) {
	d := fakegpu.NewDevice()
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 2)
	e := New(&Context{Device: d, Swapchain: sc})
	assert.Error(t, e.Initialize(0, 8))
	assert.Empty(t, d.Live())
}

// failingDevice fails graphics pipeline creation.
type failingDevice struct {
	*fakegpu.Device
}

var errNoPipeline = errors.New("no pipeline")

func (d failingDevice) CreateGraphicsPipeline(*gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	return nil, errNoPipeline
}

func TestInitializeCleansUp(t *testing.T) {
	d := fakegpu.NewDevice()
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 2)
	e := New(&Context{Device: failingDevice{d}, Swapchain: sc})
	err := e.Initialize(8, 8)
	assert.ErrorIs(t, err, errNoPipeline)
	assert.Empty(t, d.Live())
	assert.Empty(t, d.ValidationErrors())
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	cfg.FenceTimeoutMS = 1
	d := fakegpu.NewDevice()
	d.Latency = 50 * time.Millisecond
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 3)
	e := New(&Context{Device: d, Swapchain: sc, Config: cfg})

	ae := requireAssertion(t, func() {
		if err := e.Initialize(8, 8); err != nil {
			return
		}
		for range 3 {
			e.AdvanceFrame()
		}
	})
	assert.Contains(t, ae.Msg, "did not finish")
	require.NoError(t, d.WaitIdle())
}
