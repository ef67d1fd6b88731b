package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMineUUID(t *testing.T) {
	got, err := MineUUID("Click https://iam.test/verify?token=3f2b8c1e-9d4a-4e6f-8a7b-1c2d3e4f5a6b to confirm. Ref 1234567")
	require.NoError(t, err)
	assert.Equal(t, "3f2b8c1e-9d4a-4e6f-8a7b-1c2d3e4f5a6b", got)

	// version nibble 0 no es un UUID válido
	_, err = MineUUID("id 3f2b8c1e-9d4a-0e6f-8a7b-1c2d3e4f5a6b")
	assert.ErrorIs(t, err, ErrTokenPatternNotFound)
}

func TestMineOTP(t *testing.T) {
	cases := []struct {
		name, text, want string
	}{
		{"plain", "Your OTP is 493021. It expires in 5 minutes.", "493021"},
		{"skips longer runs", "Call 5551234567 or use 120934", "120934"},
		{"skips shorter runs", "Step 2 of 3: code 777888", "777888"},
		{"adjacent punctuation", "code:004512.", "004512"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MineOTP(tc.text, 6)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := MineOTP("order 12345678 shipped", 6)
	assert.ErrorIs(t, err, ErrTokenPatternNotFound)
	_, err = MineOTP("", 0)
	assert.ErrorIs(t, err, ErrTokenPatternNotFound)
}

func TestPlusAddress(t *testing.T) {
	assert.Equal(t, "qa+run7@x.test", PlusAddress("qa@x.test", "run7"))
	assert.Equal(t, "qa+b@x.test", PlusAddress("qa+a@x.test", "b"))
	assert.Equal(t, "qa@x.test", PlusAddress("qa@x.test", ""))
	assert.Equal(t, "nope", PlusAddress("nope", "t"))
}
