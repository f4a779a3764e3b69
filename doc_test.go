package reqkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.True(t, strings.HasPrefix(v, "reqkit v"+Version))

	info := GetVersionInfo()
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, GoVersion, info["go_version"])
	assert.Equal(t, "reqkit/"+Version, userAgent())
}
