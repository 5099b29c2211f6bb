package scroll

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestController_NotifiesAfterDelay(t *testing.T) {
	done := make(chan struct{}, 4)
	c := NewController(func() { done <- struct{}{} }, WithDelay(10*time.Millisecond))

	start := time.Now()
	c.ScrollToBottom()

	select {
	case <-done:
		require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("scroll notification not delivered")
	}
}

func TestController_CoalescesBursts(t *testing.T) {
	var n atomic.Int32
	c := NewController(func() { n.Add(1) }, WithDelay(30*time.Millisecond))

	c.ScrollToBottom()
	c.ScrollToBottom()
	c.ScrollToBottom()

	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), n.Load())
}

func TestController_Disabled(t *testing.T) {
	var n atomic.Int32
	c := NewController(func() { n.Add(1) }, WithDelay(0), WithDisabled(true))
	c.ScrollToBottom()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), n.Load())
	require.True(t, c.Disabled())
}

func TestController_CloseCancelsPending(t *testing.T) {
	var n atomic.Int32
	c := NewController(func() { n.Add(1) }, WithDelay(20*time.Millisecond))
	c.ScrollToBottom()
	c.Close()
	c.ScrollToBottom()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), n.Load())
}

func TestController_NilIsSafe(t *testing.T) {
	var c *Controller
	c.ScrollToBottom()
	c.Close()
	require.True(t, c.Disabled())
}
