package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoypad_rowSelection(t *testing.T) {
	j := NewJoypad()

	// select the direction row (P14 low)
	j.Write(0x20)
	assert.Equal(t, uint8(0x0F), j.Read(), "idle rows read all released")

	j.Press(JoypadLeft)
	assert.Equal(t, uint8(0x0D), j.Read())

	// the button row is unaffected
	j.Write(0x10)
	assert.Equal(t, uint8(0x0F), j.Read())

	j.Press(JoypadStart)
	assert.Equal(t, uint8(0x07), j.Read())
}

func TestJoypad_neitherRowSelected(t *testing.T) {
	j := NewJoypad()
	j.Press(JoypadA)
	j.Press(JoypadUp)

	j.Write(0x30)
	assert.Equal(t, uint8(0x0F), j.Read())
}

func TestJoypad_pressReleaseRoundTrip(t *testing.T) {
	j := NewJoypad()
	j.Write(0x20) // direction row

	for _, key := range []JoypadKey{JoypadRight, JoypadLeft, JoypadUp, JoypadDown} {
		j.Press(key)
		assert.NotEqual(t, uint8(0x0F), j.Read())
		j.Release(key)
		assert.Equal(t, uint8(0x0F), j.Read(), "release must restore the idle value")
	}

	j.Write(0x10) // button row
	for _, key := range []JoypadKey{JoypadA, JoypadB, JoypadSelect, JoypadStart} {
		j.Press(key)
		assert.NotEqual(t, uint8(0x0F), j.Read())
		j.Release(key)
		assert.Equal(t, uint8(0x0F), j.Read())
	}
}

func TestJoypad_bothRowsSelected(t *testing.T) {
	j := NewJoypad()
	j.Press(JoypadA)     // bit 0 of the button row
	j.Press(JoypadRight) // bit 0 of the direction row

	// both rows selected: hardware ANDs the rows together
	j.Write(0x00)
	assert.Equal(t, uint8(0x0E), j.Read())
}
