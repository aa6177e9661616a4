package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	var unit bytes.Buffer
	w := NewWriter(&unit)
	require.NoError(t, w.Write(Record{Key: []byte(`"the"`), Values: [][]byte{[]byte("1"), []byte("1")}}))
	require.NoError(t, w.Write(Record{Values: [][]byte{[]byte(`{"min":3}`)}}))
	require.NoError(t, w.Write(Record{Key: []byte{0xff}, Values: nil}))
	require.NoError(t, w.Flush())

	var out bytes.Buffer
	n, err := Dump(&out, &unit)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "\"the\"\t1 1\n\t{\"min\":3}\n\"\\xff\"\t\n", out.String())
}

func TestDump_Truncated(t *testing.T) {
	var unit bytes.Buffer
	w := NewWriter(&unit)
	require.NoError(t, w.Write(Record{Key: []byte("k"), Values: [][]byte{[]byte("value")}}))
	require.NoError(t, w.Flush())

	truncated := unit.Bytes()[:unit.Len()-2]
	_, err := Dump(&bytes.Buffer{}, bytes.NewReader(truncated))
	require.Error(t, err)
}
