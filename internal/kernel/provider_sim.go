// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package kernel

import (
	"context"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/nmstate"
)

// StubAdapter reports KindNoSupport for every operation. The daemon only
// ever targets Linux hosts; this exists so the rest of the module still
// builds and can be exercised in tests on other platforms.
type StubAdapter struct{}

// NewStubAdapter returns the non-Linux stand-in Adapter.
func NewStubAdapter() *StubAdapter { return &StubAdapter{} }

func (s *StubAdapter) QueryRunning(ctx context.Context) (nmstate.NetworkState, error) {
	return nmstate.NetworkState{}, errs.New(errs.KindNoSupport, "kernel adapter is only supported on Linux")
}

func (s *StubAdapter) ApplyLinks(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	return errs.New(errs.KindNoSupport, "kernel adapter is only supported on Linux")
}

func (s *StubAdapter) ApplyIPs(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	return errs.New(errs.KindNoSupport, "kernel adapter is only supported on Linux")
}
