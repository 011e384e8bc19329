package extractor

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"hostsmith/internal/profile"
)

func makeZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeTar(t *testing.T, members map[string]string, compress func(io.Writer) io.WriteCloser) []byte {
	t.Helper()
	var buf bytes.Buffer
	cw := compress(&buf)
	tw := tar.NewWriter(cw)
	for name, content := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, cw.Close())
	return buf.Bytes()
}

func TestForUnknownProg(t *testing.T) {
	_, err := For("rar", "")
	assert.ErrorContains(t, err, "unknown unzip_prog")
}

func TestForTarUnknownArg(t *testing.T) {
	_, err := For(profile.ProgTar, "--lzma")
	assert.ErrorContains(t, err, "unknown untar_arg")
}

func TestUnzip(t *testing.T) {
	payload := makeZip(t, map[string]string{
		"data/hosts.txt": "0.0.0.0 ads.example.com\n",
		"readme.md":      "nope\n",
	})

	extract, err := For(profile.ProgUnzip, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr string
	}{
		{name: "exact path", target: "data/hosts.txt", want: "0.0.0.0 ads.example.com\n"},
		{name: "base name", target: "hosts.txt", want: "0.0.0.0 ads.example.com\n"},
		{name: "missing member", target: "other.txt", wantErr: `member "other.txt" not found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract(payload, tt.target)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("garbage payload", func(t *testing.T) {
		_, err := extract([]byte("not a zip"), "hosts.txt")
		assert.ErrorContains(t, err, "reading zip archive")
	})
}

func TestGunzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("0.0.0.0 ads.example.com\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	extract, err := For(profile.ProgGzip, "")
	require.NoError(t, err)

	got, err := extract(buf.Bytes(), "hosts.txt")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0 ads.example.com\n", string(got))

	_, err = extract([]byte("not gzip"), "hosts.txt")
	assert.ErrorContains(t, err, "reading gzip stream")
}

func TestUntarGzip(t *testing.T) {
	payload := makeTar(t, map[string]string{
		"bundle/hosts": "0.0.0.0 ads.example.com\n",
	}, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})

	extract, err := For(profile.ProgTar, "--gzip")
	require.NoError(t, err)

	got, err := extract(payload, "hosts")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0 ads.example.com\n", string(got))

	_, err = extract(payload, "missing")
	assert.ErrorContains(t, err, `member "missing" not found`)
}

func TestUntarXz(t *testing.T) {
	payload := makeTar(t, map[string]string{
		"hosts.txt": "0.0.0.0 tracker.example.net\n",
	}, func(w io.Writer) io.WriteCloser {
		xw, err := xz.NewWriter(w)
		require.NoError(t, err)
		return xw
	})

	extract, err := For(profile.ProgTar, "-J")
	require.NoError(t, err)

	got, err := extract(payload, "hosts.txt")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0 tracker.example.net\n", string(got))
}

func TestUn7zGarbage(t *testing.T) {
	extract, err := For(profile.Prog7z, "")
	require.NoError(t, err)

	_, err = extract([]byte("not a 7z archive"), "hosts.txt")
	assert.ErrorContains(t, err, "reading 7z archive")
}
