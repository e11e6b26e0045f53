package uevent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvBag_PutAndGet(t *testing.T) {
	bag := newEnvBag()
	assert.False(t, bag.put("DEVPATH", "/devices/sda"))
	assert.False(t, bag.put("ACTION", "add"))

	v, ok := bag.get("DEVPATH")
	require.True(t, ok)
	assert.Equal(t, "/devices/sda", v)

	_, ok = bag.get("MISSING")
	assert.False(t, ok)
}

func TestEnvBag_OverflowsOnPairCount(t *testing.T) {
	bag := newEnvBag()
	overflowed := false
	for i := 0; i < HotplugNumEnvp+5; i++ {
		if bag.put(strings.Repeat("K", 1)+string(rune('a'+i%26)), "v") {
			overflowed = true
			break
		}
	}
	assert.True(t, overflowed)
}

func TestEnvBag_OverflowsOnByteBudget(t *testing.T) {
	bag := newEnvBag()
	big := strings.Repeat("x", HotplugBufferSize)
	overflowed := bag.put("KEY", big)
	assert.True(t, overflowed)
}

func TestHelpers_GetEnvPositiveInt(t *testing.T) {
	ev := &Event{env: newEnvBag()}
	ev.env.put("COUNT", "5")
	ev.env.put("NEGATIVE", "-1")
	ev.env.put("NOTANUMBER", "abc")

	assert.Equal(t, 5, GetEnvPositiveInt(ev, "COUNT"))
	assert.Equal(t, -1, GetEnvPositiveInt(ev, "NEGATIVE"))
	assert.Equal(t, -1, GetEnvPositiveInt(ev, "NOTANUMBER"))
	assert.Equal(t, -1, GetEnvPositiveInt(ev, "MISSING"))
}

func TestHelpers_IsMpath(t *testing.T) {
	ev := &Event{env: newEnvBag()}
	ev.env.put("DM_UUID", MpathUUIDPrefix+"36000abc123")
	assert.True(t, IsMpath(ev))

	ev2 := &Event{env: newEnvBag()}
	ev2.env.put("DM_UUID", "CRYPT-LUKS-abc")
	assert.False(t, IsMpath(ev2))

	ev3 := &Event{env: newEnvBag()}
	assert.False(t, IsMpath(ev3))
}
