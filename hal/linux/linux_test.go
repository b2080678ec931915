//go:build linux

package linux

import (
	"context"
	"testing"

	"github.com/ardnew/intstack/hal"
	"github.com/ardnew/intstack/pkg"
)

func TestProcess_AttachDetach(t *testing.T) {
	h := New(hal.DefaultFilter, WithSysfsRoot(t.TempDir()))

	tr, ok := h.process(parseUEvent(addEvent(tokenDevpath, "58f/6387/100")))
	if !ok || !tr.attach {
		t.Fatalf("add: transition = %+v, %v, want attach", tr, ok)
	}
	if tr.token.Path != "1-1" || tr.token.Bus != 1 || tr.token.Dev != 7 {
		t.Errorf("add: token = %+v", tr.token)
	}

	// A second matching token is ignored while one is attached.
	if _, ok := h.process(parseUEvent(addEvent("/devices/usb1/1-2", "58f/6387/100"))); ok {
		t.Error("second add reported a transition")
	}
	if _, ok := h.process(parseUEvent(removeEvent("/devices/usb1/1-2"))); ok {
		t.Error("removal of untracked device reported a transition")
	}

	tr, ok = h.process(parseUEvent(removeEvent(tokenDevpath)))
	if !ok || tr.attach {
		t.Fatalf("remove: transition = %+v, %v, want detach", tr, ok)
	}
	if tr.token.VendorID != hal.DefaultVendorID {
		t.Errorf("remove: token = %+v", tr.token)
	}

	if _, ok := h.process(parseUEvent(removeEvent(tokenDevpath))); ok {
		t.Error("duplicate remove reported a transition")
	}
}

func TestProcess_FilterMismatch(t *testing.T) {
	h := New(hal.DefaultFilter, WithSysfsRoot(t.TempDir()))
	if _, ok := h.process(parseUEvent(addEvent(tokenDevpath, "1d6b/2/510"))); ok {
		t.Error("non-matching add reported a transition")
	}
}

func TestProcess_SysfsFallback(t *testing.T) {
	root := t.TempDir()
	writeDevice(t, root, "3-4", tokenAttrs())
	h := New(hal.DefaultFilter, WithSysfsRoot(root))

	data := []byte(
		"add@/devices/usb3/3-4\x00" +
			"SUBSYSTEM=usb\x00" +
			"DEVTYPE=usb_device\x00",
	)
	tr, ok := h.process(parseUEvent(data))
	if !ok || !tr.attach {
		t.Fatalf("transition = %+v, %v, want attach", tr, ok)
	}
	if tr.token.Path != "3-4" || tr.token.Bus != 2 || tr.token.Dev != 5 {
		t.Errorf("token = %+v", tr.token)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeDevice(t, root, "1-1", tokenAttrs())
	h := New(hal.Filter{VendorID: 0x058f}, WithSysfsRoot(root))

	tr, ok := h.scan()
	if !ok || !tr.attach || tr.token.ProductID != 0x6387 {
		t.Fatalf("scan() = %+v, %v", tr, ok)
	}
	if _, ok := h.scan(); ok {
		t.Error("second scan() reported a transition")
	}
}

func TestWaitBeforeInit(t *testing.T) {
	h := New(hal.DefaultFilter)
	if _, err := h.WaitForAttach(context.Background()); err != pkg.ErrNotRunning {
		t.Errorf("WaitForAttach() error = %v, want ErrNotRunning", err)
	}
	if err := h.Start(); err != pkg.ErrNotRunning {
		t.Errorf("Start() error = %v, want ErrNotRunning", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
