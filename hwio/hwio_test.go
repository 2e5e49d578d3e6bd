// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwio

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModeString(t *testing.T) {
	tc := []struct {
		m    Mode
		want string
	}{
		{Input, "in"},
		{Output, "out"},
		{Alt0, "alt0"},
		{Alt5, "alt5"},
		{Mode(42), "mode(invalid)"},
	}
	for _, tt := range tc {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q; want %q", tt.m, got, tt.want)
		}
	}
}

func TestAltIndex(t *testing.T) {
	if got := Alt3.AltIndex(); got != 3 {
		t.Errorf("Alt3.AltIndex() = %d; want 3", got)
	}
	if got := Output.AltIndex(); got != -1 {
		t.Errorf("Output.AltIndex() = %d; want -1", got)
	}
	if Input.IsAlt() || !Alt0.IsAlt() {
		t.Error("IsAlt misclassifies Input or Alt0")
	}
}

// recordIO records the calls a Pin facade forwards.
type recordIO struct {
	calls []string
	level Level
}

func (r *recordIO) ConfigurePin(pin int, mode Mode, pull Pull) error {
	r.calls = append(r.calls, fmt.Sprintf("configure %d %s %s", pin, mode, pull))
	return nil
}

func (r *recordIO) ReadPin(pin int) (Level, error) {
	r.calls = append(r.calls, fmt.Sprintf("read %d", pin))
	return r.level, nil
}

func (r *recordIO) WritePin(pin int, lv Level) error {
	r.calls = append(r.calls, fmt.Sprintf("write %d %s", pin, lv))
	r.level = lv
	return nil
}

func (r *recordIO) Close() error { return nil }

func TestPinForwarding(t *testing.T) {
	io := &recordIO{}
	p := Pin{IO: io, N: 17}

	if err := p.Configure(Output, PullNone); err != nil {
		t.Fatal(err)
	}
	if err := p.High(); err != nil {
		t.Fatal(err)
	}
	if err := p.Low(); err != nil {
		t.Fatal(err)
	}
	lv, err := p.Read()
	if err != nil {
		t.Fatal(err)
	}
	if lv != Low {
		t.Errorf("Read() = %v; want low", lv)
	}

	want := []string{
		"configure 17 out none",
		"write 17 high",
		"write 17 low",
		"read 17",
	}
	if diff := cmp.Diff(want, io.calls); diff != "" {
		t.Errorf("forwarded calls mismatch (-want +got):\n%s", diff)
	}

	if got, want := p.String(), "gpio17"; got != want {
		t.Errorf("String() = %q; want %q", got, want)
	}
}
