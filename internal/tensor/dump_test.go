package tensor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRoundTrip(t *testing.T) {
	t.Parallel()

	x, err := FromSlice[int16](Shape{1, 2, 2}, -4, []int16{1, -2, 300, -400})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeDumps(&buf, []Dump{x.Dump("feature")}))

	dumps, err := DecodeDumps(&buf)
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	assert.Equal(t, "feature", dumps[0].Name)
	assert.Equal(t, DTypeInt16, dumps[0].DType)

	y, err := FromDump[int16](dumps[0])
	require.NoError(t, err)
	assert.True(t, x.IsSameShape(y))
	assert.Equal(t, x.Exponent, y.Exponent)
	assert.Equal(t, x.Element, y.Element)
}

func TestDecodeSingleObject(t *testing.T) {
	t.Parallel()

	dumps, err := DecodeDumps(strings.NewReader(`{"dtype":"int8","shape":[3],"exponent":0,"data":[1,2,3]}`))
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	assert.Equal(t, []int32{1, 2, 3}, dumps[0].Data)
}

func TestFromDumpRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Dump
		want error
	}{
		{"dtype", Dump{DType: DTypeInt16, Shape: []int{1}, Data: []int32{1}}, ErrDTypeMismatch},
		{"size", Dump{DType: DTypeInt8, Shape: []int{2}, Data: []int32{1}}, ErrDumpSize},
		{"range", Dump{DType: DTypeInt8, Shape: []int{1}, Data: []int32{200}}, ErrDumpRange},
		{"ambiguous", Dump{DType: DTypeInt8, Shape: []int{1}, Data: []int32{1}, Values: []float64{1}}, ErrDumpAmbiguous},
		{"values size", Dump{DType: DTypeInt8, Shape: []int{2}, Values: []float64{1}}, ErrDumpSize},
		// The product of these dimensions wraps around an int.
		{"overflow", Dump{DType: DTypeInt8, Shape: []int{MaxElements, 4, 1}, Data: []int32{}}, ErrShapeTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromDump[int8](tc.d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestFromDumpQuantizesValues(t *testing.T) {
	t.Parallel()

	dumps, err := DecodeDumps(strings.NewReader(`{"dtype":"int8","shape":[1,1,3],"exponent":-3,"values":[0.5,-1.0625,40]}`))
	require.NoError(t, err)
	x, err := FromDump[int8](dumps[0])
	require.NoError(t, err)
	assert.Equal(t, []int8{4, -9, 127}, x.Element)
	assert.Equal(t, -3, x.Exponent)

	out := x.Dump("q").WithValues()
	assert.Equal(t, []float64{0.5, -1.125, 15.875}, out.Values)
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()
	_, err := DecodeDumps(strings.NewReader("  "))
	assert.Error(t, err)
}
