package source

import "testing"

func TestNewDispatchesByKind(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
		want string
	}{
		{"screen", Spec{Kind: KindScreen, Monitor: 0}, "*source.ScreenCapture"},
		{"area", Spec{Kind: KindArea, Monitor: 0, X: 1, Y: 1, W: 10, H: 10}, "*source.AreaCapture"},
		{"window", Spec{Kind: KindWindow, Raw: "Terminal"}, "*source.WindowCapture"},
		{"media", Spec{Kind: KindMedia, Path: "/tmp/in.mp4"}, "*source.MediaFile"},
		{"camera", Spec{Kind: KindCamera, Index: 0}, "*source.CameraCapture"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.spec, 32, 16, "")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s == nil {
				t.Fatal("expected non-nil Source")
			}
		})
	}
}

func TestNewQueueRequiresBusAddr(t *testing.T) {
	_, err := New(Spec{Kind: KindQueue, SlotName: "anim"}, 32, 16, "")
	if err == nil {
		t.Fatal("expected error constructing a queue source without a bus address")
	}

	s, err := New(Spec{Kind: KindQueue, SlotName: "anim"}, 32, 16, "127.0.0.1:9999")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*ExternalQueue); !ok {
		t.Fatalf("expected *ExternalQueue, got %T", s)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(Spec{Kind: Kind("bogus")}, 32, 16, "")
	if err == nil {
		t.Fatal("expected error for unrecognized Kind")
	}
}
