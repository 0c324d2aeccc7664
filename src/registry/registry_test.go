package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

type counter struct{ n int }

func TestRegisterResolveUnregister(t *testing.T) {
	r := New()
	c := &counter{}
	require.NoError(t, r.Register("Inventory", c, WithTypeName("InventoryService")))

	inst, err := r.Resolve("Inventory")
	require.NoError(t, err)
	assert.Same(t, c, inst.Value)
	assert.Equal(t, "InventoryService", inst.TypeName)
	assert.Equal(t, []string{"Inventory"}, r.IDs())

	assert.True(t, r.Unregister("Inventory"))
	assert.False(t, r.Unregister("Inventory"))

	_, err = r.Resolve("Inventory")
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrInstanceNotFound)
}

func TestRegisterDefaultsTypeNameToID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("Orders", &counter{}))
	inst, err := r.Resolve("Orders")
	require.NoError(t, err)
	assert.Equal(t, "Orders", inst.TypeName)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	r := New()
	assert.Error(t, r.Register("", &counter{}))
	assert.Error(t, r.Register("x", nil))
}

func TestRegisterReplaces(t *testing.T) {
	r := New()
	first, second := &counter{}, &counter{}
	require.NoError(t, r.Register("c", first))
	require.NoError(t, r.Register("c", second))
	inst, err := r.Resolve("c")
	require.NoError(t, err)
	assert.Same(t, second, inst.Value)
}

func TestInvokeSerializesPerInstance(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("c", &counter{}))
	inst, err := r.Resolve("c")
	require.NoError(t, err)

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = inst.Invoke(func(v any) (any, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&maxInFlight)
					if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				v.(*counter).n++
				atomic.AddInt32(&inFlight, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight)
	assert.Equal(t, 8, inst.Value.(*counter).n)
}
