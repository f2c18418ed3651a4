package cores

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Hint
		wantErr bool
	}{
		{"0", Hint{0}, false},
		{"0,1", Hint{0, 1}, false},
		{" 1 , 0 ", Hint{1, 0}, false},
		{"", nil, false},
		{"0,0", nil, true},
		{"-1", nil, true},
		{"a", nil, true},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestHintString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1,0", Hint{1, 0}.String())
	assert.Equal(t, "", Hint{}.String())
}

func TestDefaultAndResolve(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { require.NoError(t, SetDefault(prev)) })

	require.NoError(t, SetDefault(Hint{0, 1}))
	assert.Equal(t, Hint{0, 1}, Default())
	assert.Equal(t, Hint{0, 1}, Resolve(nil))
	assert.Equal(t, Hint{1}, Resolve(Hint{1}))

	// Mutating the returned hint must not change the default.
	d := Default()
	d[0] = 7
	assert.Equal(t, Hint{0, 1}, Default())

	assert.Error(t, SetDefault(nil))
	assert.Error(t, SetDefault(Hint{2, 2}))
	assert.Equal(t, Hint{0, 1}, Default())
}
