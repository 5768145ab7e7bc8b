// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr := BytesToAddress([]byte("validator"))

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("0x1234")
	assert.EqualError(t, err, "invalid length")

	_, err = ParseAddress("1x" + addr.String()[2:])
	assert.EqualError(t, err, "invalid prefix")
}

func TestAddressJSON(t *testing.T) {
	addr := BytesToAddress([]byte("depositor"))
	m := map[Address]int{addr: 1}

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[Address]int
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, m, decoded)
}

func TestProxyAddress(t *testing.T) {
	treasury := BytesToAddress([]byte("treasury"))
	v1 := BytesToAddress([]byte("v1"))
	v2 := BytesToAddress([]byte("v2"))

	assert.Equal(t, ProxyAddress(treasury, v1, 100), ProxyAddress(treasury, v1, 100))
	assert.NotEqual(t, ProxyAddress(treasury, v1, 100), ProxyAddress(treasury, v1, 101))
	assert.NotEqual(t, ProxyAddress(treasury, v1, 100), ProxyAddress(treasury, v2, 100))
	assert.False(t, ProxyAddress(treasury, v1, 100).IsZero())
}

func TestUnits(t *testing.T) {
	assert.Equal(t, big.NewInt(3*Coin), Coins(3))
	assert.Equal(t, big.NewInt(0), MulDiv(Coins(1), Coins(1), Zero()))
	assert.Equal(t, Coins(5), MulDiv(Coins(10), big.NewInt(1), big.NewInt(2)))
	assert.Equal(t, Coins(2), Min(Coins(2), Coins(3)))
	assert.Equal(t, "1.500000000", FormatCoins(big.NewInt(1_500_000_000)))
	assert.Equal(t, big.NewInt(0), Copy(nil))
}

func TestParseCoins(t *testing.T) {
	v, err := ParseCoins("0.1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000), v)

	v, err = ParseCoins("12")
	require.NoError(t, err)
	assert.Equal(t, Coins(12), v)

	_, err = ParseCoins("0.0000000001")
	assert.Error(t, err)
	_, err = ParseCoins("-1")
	assert.Error(t, err)
	_, err = ParseCoins("ten")
	assert.Error(t, err)
}
