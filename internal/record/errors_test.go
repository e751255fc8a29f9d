package record

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewIDError(ErrCodeInvalidArgument, "registry.Add", 4, "already registered")
	assert.Equal(t, "registry.Add: INVALID_ARGUMENT: already registered (id=4)", err.Error())

	err = NewError(ErrCodeInvalidOperation, "history.EndGroup", "no open group")
	assert.Equal(t, "history.EndGroup: INVALID_OPERATION: no open group", err.Error())
}

func TestError_PredicatesSeeThroughWrapping(t *testing.T) {
	base := NewError(ErrCodeCapacityExceeded, "registry.Add", "full")
	wrapped := fmt.Errorf("commit: %w", base)

	assert.True(t, IsCapacityExceeded(wrapped))
	assert.False(t, IsInvalidArgument(wrapped))
	assert.False(t, IsInvalidOperation(wrapped))
	assert.Equal(t, ErrCodeCapacityExceeded, CodeOf(wrapped))
}

func TestError_PredicatesOnForeignError(t *testing.T) {
	err := fmt.Errorf("plain")
	assert.Equal(t, ErrorCode(""), CodeOf(err))
	assert.False(t, IsCapacityExceeded(err))
	assert.False(t, IsCapacityExceeded(nil))
}

func TestBase_NewBaseIsUnregistered(t *testing.T) {
	b := NewBase()
	assert.Equal(t, NoID, b.ID())
	assert.False(t, b.Registered())

	b.SetID(3)
	assert.Equal(t, 3, b.ID())
	assert.True(t, b.Registered())
}
