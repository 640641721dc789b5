package pageprovider_test

import (
	"testing"

	"github.com/halloc/heap/pageprovider"
	"github.com/stretchr/testify/require"
)

func TestArenaProviderAcquireRelease(t *testing.T) {
	p := pageprovider.NewArenaProvider()

	addr, err := p.Acquire(4)
	require.NoError(t, err)
	require.NotZero(t, addr)

	err = p.Release(addr, 4)
	require.NoError(t, err)
}

func TestArenaProviderReleaseMismatch(t *testing.T) {
	p := pageprovider.NewArenaProvider()

	addr, err := p.Acquire(2)
	require.NoError(t, err)

	err = p.Release(addr, 3)
	require.Error(t, err)

	err = p.Release(addr, 2)
	require.NoError(t, err)
}

func TestArenaProviderUnknownAddress(t *testing.T) {
	p := pageprovider.NewArenaProvider()

	err := p.Release(0xdeadbeef, 1)
	require.Error(t, err)
}

func TestFailingProvider(t *testing.T) {
	var p pageprovider.FailingProvider

	_, err := p.Acquire(1)
	require.Error(t, err)
}
