package rtkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectRegistryRegisterAndFind(t *testing.T) {
	r := newObjectRegistry()
	var h ObjectHeader

	require.NoError(t, r.register(&h, ClassSemaphore, "sem0", true, "payload"))
	assert.Equal(t, uint64(1), h.ID())
	assert.Equal(t, "sem0", h.Name())
	assert.Equal(t, ClassSemaphore, h.Class())
	assert.True(t, h.IsStatic())

	assert.Equal(t, "payload", r.find(ClassSemaphore, "sem0"))
	assert.Nil(t, r.find(ClassMutex, "sem0"))
}

func TestObjectRegistryNameInUseSameClass(t *testing.T) {
	r := newObjectRegistry()
	var h1, h2 ObjectHeader
	require.NoError(t, r.register(&h1, ClassMutex, "dup", false, 1))
	assert.ErrorIs(t, r.register(&h2, ClassMutex, "dup", false, 2), ErrNameInUse)
}

func TestObjectRegistryNameReusableAcrossClasses(t *testing.T) {
	r := newObjectRegistry()
	var h1, h2 ObjectHeader
	require.NoError(t, r.register(&h1, ClassMutex, "shared", false, 1))
	assert.NoError(t, r.register(&h2, ClassSemaphore, "shared", false, 2))
}

func TestObjectRegistryUnregisterFreesName(t *testing.T) {
	r := newObjectRegistry()
	var h ObjectHeader
	require.NoError(t, r.register(&h, ClassEvent, "ev", true, nil))
	r.unregister(&h)
	assert.Nil(t, r.find(ClassEvent, "ev"))

	var h2 ObjectHeader
	assert.NoError(t, r.register(&h2, ClassEvent, "ev", true, nil))
}

func TestObjectClassString(t *testing.T) {
	assert.Equal(t, "thread", ClassThread.String())
	assert.Equal(t, "msgqueue", ClassMsgQueue.String())
	assert.Equal(t, "unknown", ObjectClass(255).String())
}
