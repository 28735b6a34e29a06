package nacos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigs(t *testing.T) {
	configs, err := ParseServerConfigs("10.0.0.1:8848, nacos.local:9848")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "10.0.0.1", configs[0].IpAddr)
	assert.EqualValues(t, 8848, configs[0].Port)
	assert.Equal(t, "nacos.local", configs[1].IpAddr)

	_, err = ParseServerConfigs("no-port")
	assert.Error(t, err)
	_, err = ParseServerConfigs("host:abc")
	assert.Error(t, err)
}
