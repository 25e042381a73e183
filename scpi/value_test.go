package scpi

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	require := require.New(t)

	for _, s := range []string{"1", " ON\n", "on"} {
		v, err := ParseBool(s)
		require.NoError(err, s)
		require.True(v, s)
	}
	for _, s := range []string{"0", "OFF"} {
		v, err := ParseBool(s)
		require.NoError(err, s)
		require.False(v, s)
	}

	_, err := ParseBool("2")
	require.ErrorIs(err, ErrInvalidValue)

	require.Equal("1", FormatBool(true))
	require.Equal("0", FormatBool(false))
}

func TestParseNumbers(t *testing.T) {
	require := require.New(t)

	i, err := ParseInt(" +12 ")
	require.NoError(err)
	require.EqualValues(12, i)

	u, err := ParseUint("+7")
	require.NoError(err)
	require.EqualValues(7, u)

	f, err := ParseFloat("+1.00000000E+009\n")
	require.NoError(err)
	require.InDelta(1e9, f, 0)

	_, err = ParseFloat("abc")
	require.ErrorIs(err, ErrInvalidValue)

	list, err := ParseFloats("1, 2.5,-3E-1")
	require.NoError(err)
	require.Equal([]float64{1, 2.5, -0.3}, list)

	_, err = ParseFloats("1,x")
	require.ErrorIs(err, ErrInvalidValue)
}

func TestQuoting(t *testing.T) {
	require := require.New(t)

	require.True(IsQuoted(`"abc"`))
	require.True(IsQuoted(`'abc'`))
	require.False(IsQuoted(`"abc'`))
	require.False(IsQuoted(`"`))

	require.Equal(`'it''s'`, Quote("it's", '\''))
	require.Equal("it's", Unquote(`'it''s'`))
	require.Equal("plain", Unquote("plain"))
	require.Equal("Trc1", ParseString(" 'Trc1'\n"))
}

func TestSplitList(t *testing.T) {
	require := require.New(t)

	require.Equal([]string{}, SplitList("  "))
	require.Equal([]string{"a"}, SplitList("a"))
	require.Equal([]string{"1", "'a,b'", `"c"`, ""}, SplitList(`1, 'a,b' ,"c",`))
}

func TestParseIndexNames(t *testing.T) {
	require := require.New(t)

	list, err := ParseIndexNames(`'1,Trc1,2,Trc2'`)
	require.Error(err)
	require.Nil(list)

	list, err = ParseIndexNames(`1,'Trc1',2,'Trc 2'`)
	require.NoError(err)
	require.Equal([]IndexName{{1, "Trc1"}, {2, "Trc 2"}}, list)
	require.Equal([]uint{1, 2}, Indexes(list))
	require.Equal([]string{"Trc1", "Trc 2"}, Names(list))

	_, err = ParseIndexNames("1,'a',2")
	require.ErrorIs(err, ErrInvalidValue)

	empty, err := ParseIndexNames("")
	require.NoError(err)
	require.Empty(empty)
}

func TestDecodeBinary(t *testing.T) {
	require := require.New(t)

	var f32 []byte
	for _, v := range []float32{1, -0.5} {
		f32 = binary.BigEndian.AppendUint32(f32, math.Float32bits(v))
	}
	got32, err := DecodeFloat32s(f32, binary.BigEndian)
	require.NoError(err)
	require.Equal([]float32{1, -0.5}, got32)

	var f64 []byte
	for _, v := range []float64{1, 2, 3, -4} {
		f64 = binary.LittleEndian.AppendUint64(f64, math.Float64bits(v))
	}
	got64, err := DecodeFloat64s(f64, binary.LittleEndian)
	require.NoError(err)
	require.Equal([]float64{1, 2, 3, -4}, got64)

	c, err := DecodeComplex128s(f64, binary.LittleEndian)
	require.NoError(err)
	require.Equal([]complex128{complex(1, 2), complex(3, -4)}, c)

	_, err = DecodeFloat32s(make([]byte, 3), binary.LittleEndian)
	require.ErrorIs(err, ErrInvalidValue)
	_, err = DecodeFloat64s(make([]byte, 12), binary.LittleEndian)
	require.ErrorIs(err, ErrInvalidValue)
	_, err = DecodeComplex128s(make([]byte, 8), binary.LittleEndian)
	require.ErrorIs(err, ErrInvalidValue)
}
