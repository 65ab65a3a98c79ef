package cast

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ledcast/caster/internal/action"
	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/frame"
	"github.com/ledcast/caster/internal/framebus"
)

func testConfig(name, sourceSpec, host string) config.CastConfig {
	return config.CastConfig{
		Name:        name,
		Kind:        "desktop",
		RateFPS:     30,
		ScaleWidth:  4,
		ScaleHeight: 4,
		SourceSpec:  sourceSpec,
		Protocol:    "ddp",
		Host:        host,
		TileX:       1,
		TileY:       1,
		FrameMax:    4,
		Filters:     config.FilterConfig{Gamma: 1.0},
	}
}

func newTestDeps(busAddr string) Deps {
	return Deps{
		Devices:    device.NewRegistry(),
		Actions:    action.NewRegistry(),
		QueueDepth: 16,
		BusAddr:    busAddr,
		LiveNames:  func(string) bool { return true },
	}
}

func TestCastRunsAndProducesFrames(t *testing.T) {
	bus, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("framebus.Listen: %v", err)
	}
	defer bus.Close()

	producer, err := framebus.Dial(bus.Addr())
	if err != nil {
		t.Fatalf("framebus.Dial: %v", err)
	}
	defer producer.Close()
	if err := producer.Create("feed1", 4, 4); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := producer.Put("feed1", frame.Blank(4, 4, 1)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cfg := testConfig("studio", "queue:feed1", "127.0.0.1")
	c := New(cfg, newTestDeps(bus.Addr()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().TotalFrames >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c.Stats().TotalFrames < 3 {
		t.Fatalf("expected at least 3 frames processed, got %d", c.Stats().TotalFrames)
	}
	if c.State() != Running {
		t.Fatalf("expected cast to still be Running, got %v", c.State())
	}

	c.Stop()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cast did not terminate after Stop")
	}
	if c.State() != Terminated {
		t.Fatalf("expected Terminated after stop, got %v", c.State())
	}
}

func TestCastMulticastTileGridResizesBeforeSplit(t *testing.T) {
	bus, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("framebus.Listen: %v", err)
	}
	defer bus.Close()

	producer, err := framebus.Dial(bus.Addr())
	if err != nil {
		t.Fatalf("framebus.Dial: %v", err)
	}
	defer producer.Close()
	if err := producer.Create("feed-tiles", 4, 4); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := producer.Put("feed-tiles", frame.Blank(4, 4, 1)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// tile_y > 1 is the regression case: Split reads sub-regions below the
	// first row, which panics if the frame handed to it is still only
	// ScaleWidth x ScaleHeight instead of ScaleWidth x (ScaleHeight*TileY).
	cfg := testConfig("tiled", "queue:feed-tiles", "127.0.0.1")
	cfg.Multicast = true
	cfg.TileX = 1
	cfg.TileY = 2
	cfg.Devices = []config.DeviceTarget{{Index: 1, Addr: "127.0.0.2"}}

	c := New(cfg, newTestDeps(bus.Addr()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().TotalFrames >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c.Stats().TotalFrames < 3 {
		t.Fatalf("expected at least 3 frames processed, got %d", c.Stats().TotalFrames)
	}
	if c.State() != Running {
		t.Fatalf("expected cast to still be Running, got %v", c.State())
	}

	c.Stop()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cast did not terminate after Stop")
	}
}

func TestCastOpenFailsOnInvalidDestination(t *testing.T) {
	cfg := testConfig("badhost", "queue:feed1", "not-an-ip")
	c := New(cfg, newTestDeps("127.0.0.1:0"))

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail for an invalid destination address")
	}
	if c.State() != Terminated {
		t.Fatalf("expected Terminated after a failed Opening, got %v", c.State())
	}
}

func TestStopActionStopsCast(t *testing.T) {
	bus, err := framebus.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("framebus.Listen: %v", err)
	}
	defer bus.Close()

	producer, err := framebus.Dial(bus.Addr())
	if err != nil {
		t.Fatalf("framebus.Dial: %v", err)
	}
	defer producer.Close()
	producer.Create("feed2", 4, 4)
	producer.Put("feed2", frame.Blank(4, 4, 1))

	deps := newTestDeps(bus.Addr())
	cfg := testConfig("remote-cast", "queue:feed2", "127.0.0.1")
	c := New(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deps.Actions.Enqueue(cfg.Name + "||stop||" + "||" + strconv.FormatInt(time.Now().Unix(), 10))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cast did not stop after a stop action")
	}
}
