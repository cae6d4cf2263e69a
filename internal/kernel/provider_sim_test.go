// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"grimm.is/netstated/internal/errs"
)

func TestStubAdapterReportsNoSupport(t *testing.T) {
	s := NewStubAdapter()
	ctx := context.Background()

	_, err := s.QueryRunning(ctx)
	require.Equal(t, errs.KindNoSupport, errs.GetKind(err))

	require.Equal(t, errs.KindNoSupport, errs.GetKind(s.ApplyLinks(ctx, nil, nil)))
	require.Equal(t, errs.KindNoSupport, errs.GetKind(s.ApplyIPs(ctx, nil, nil)))
}
