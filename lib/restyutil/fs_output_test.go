package restyutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	testCases := []struct {
		id     string
		expect string
	}{
		{id: "0001.txt", expect: "0001.txt"},
		{id: "gba sp/ags-101", expect: "gba_sp_ags-101"},
		{id: "../../etc", expect: ".._.._etc"},
		{id: "..", expect: "_"},
		{id: "", expect: "_"},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, FileName(test.id), test.id)
	}
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	require.NoError(t, out.Write("a/b", "contents"))
	contents, err := os.ReadFile(filepath.Join(dir, "a_b"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}
