package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	err := New(KindInvalidArgument, "invalid input")
	require.Equal(t, "invalid input", err.Error())

	wrapped := Wrap(err, KindBug, "failed to validate")
	require.Equal(t, "failed to validate: invalid input", wrapped.Error())
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindInvalidArgument, "bad value %d", 42)
	require.Equal(t, "bad value 42", err.Error())
}

func TestGetKind(t *testing.T) {
	err := New(KindInvalidArgument, "invalid input")
	require.Equal(t, KindInvalidArgument, GetKind(err))

	wrapped := Wrap(err, KindBug, "failed")
	require.Equal(t, KindBug, GetKind(wrapped))

	require.Equal(t, KindUnknown, GetKind(errors.New("std error")))
}

func TestAttributes(t *testing.T) {
	err := New(KindInvalidArgument, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	require.Equal(t, "port", attrs["field"])
	require.Equal(t, 80, attrs["value"])

	wrapped := Wrap(err, KindDaemonFailure, "failed")
	wrapped = Attr(wrapped, "operation", "start")

	allAttrs := GetAttributes(wrapped)
	require.Equal(t, "start", allAttrs["operation"])
	require.Equal(t, "port", allAttrs["field"])
	require.Equal(t, 80, allAttrs["value"])
}

func TestAttrOnStdError(t *testing.T) {
	base := errors.New("plain")
	wrapped := Attr(base, "key", "val")
	require.Equal(t, KindBug, GetKind(wrapped))
	require.Equal(t, "val", GetAttributes(wrapped)["key"])
}

func TestKindString(t *testing.T) {
	require.Equal(t, "IpcClosed", KindIpcClosed.String())
	require.Equal(t, "PermissionDeny", KindPermissionDeny.String())
	require.Equal(t, "Unknown", KindUnknown.String())
}

func TestIsAs(t *testing.T) {
	err := New(KindTimeout, "timed out")
	wrapped := Wrap(err, KindDaemonFailure, "apply failed")

	var target *Error
	require.True(t, As(wrapped, &target))
	require.Equal(t, KindDaemonFailure, target.Kind)

	require.True(t, Is(wrapped, wrapped))
}
