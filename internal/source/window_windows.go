//go:build windows

package source

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

var oleInitOnce sync.Once

// newWindowLocator resolves a window by title substring (the common case)
// or by numeric HWND when Spec.WindowID was parsed from a numeric source
// string. CoInitializeEx mirrors the teacher's own COM session setup
// pattern even though this locator itself only calls raw user32 procs.
func newWindowLocator(spec Spec) (windowLocator, error) {
	oleInitOnce.Do(func() {
		ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)
	})
	return &win32WindowLocator{title: spec.Raw, hwnd: uintptr(spec.WindowID)}, nil
}

var (
	user32            = syscall.NewLazyDLL("user32.dll")
	procFindWindowW   = user32.NewProc("FindWindowW")
	procGetWindowRect = user32.NewProc("GetWindowRect")
)

type win32Rect struct {
	Left, Top, Right, Bottom int32
}

type win32WindowLocator struct {
	title string
	hwnd  uintptr
}

func (l *win32WindowLocator) bounds() (image.Rectangle, error) {
	hwnd := l.hwnd
	if hwnd == 0 {
		titlePtr, err := syscall.UTF16PtrFromString(l.title)
		if err != nil {
			return image.Rectangle{}, err
		}
		r, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(titlePtr)))
		if r == 0 {
			return image.Rectangle{}, fmt.Errorf("FindWindowW: no window titled %q", l.title)
		}
		hwnd = r
	}

	var rect win32Rect
	ok, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))
	if ok == 0 {
		return image.Rectangle{}, fmt.Errorf("GetWindowRect failed for hwnd %d", hwnd)
	}
	return image.Rect(int(rect.Left), int(rect.Top), int(rect.Right), int(rect.Bottom)), nil
}
