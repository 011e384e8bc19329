// Package extractor pulls the hosts payload out of downloaded archives.
package extractor

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/bodgit/sevenzip"
	"github.com/ulikunitz/xz"

	"hostsmith/internal/profile"
)

// An Extractor decodes an archive payload and returns the content of the
// wanted member.
type Extractor func(payload []byte, target string) ([]byte, error)

// For selects the extractor matching a source's unzip_prog. For tar
// archives untarArg names the compression of the outer stream.
func For(prog, untarArg string) (Extractor, error) {
	switch prog {
	case profile.ProgUnzip:
		return unzip, nil
	case profile.ProgGzip:
		return gunzip, nil
	case profile.Prog7z:
		return un7z, nil
	case profile.ProgTar:
		decompress, err := tarDecompressor(untarArg)
		if err != nil {
			return nil, err
		}
		return func(payload []byte, target string) ([]byte, error) {
			return untar(payload, target, decompress)
		}, nil
	default:
		return nil, fmt.Errorf("unknown unzip_prog %q", prog)
	}
}

// matches reports whether an archive member satisfies the configured
// unzip_target, either by its full path inside the archive or by its bare
// file name.
func matches(member, target string) bool {
	return member == target || path.Base(member) == target
}

func unzip(payload []byte, target string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("reading zip archive: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !matches(f.Name, target) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening zip member %q: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading zip member %q: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("member %q not found in zip archive", target)
}

// gunzip decompresses a single-stream gzip payload. The target is the
// name the decompressed file would get, gzip streams carry no member list
// to search.
func gunzip(payload []byte, _ string) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing gzip stream: %w", err)
	}
	return data, nil
}

func un7z(payload []byte, target string) ([]byte, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("reading 7z archive: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !matches(f.Name, target) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening 7z member %q: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading 7z member %q: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("member %q not found in 7z archive", target)
}

func untar(payload []byte, target string, decompress func(io.Reader) (io.Reader, error)) ([]byte, error) {
	stream, err := decompress(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompressing tar stream: %w", err)
	}

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("member %q not found in tar archive", target)
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !matches(hdr.Name, target) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading tar member %q: %w", hdr.Name, err)
		}
		return data, nil
	}
}

// tarDecompressor maps an untar_arg flag to the matching stream wrapper.
func tarDecompressor(untarArg string) (func(io.Reader) (io.Reader, error), error) {
	switch untarArg {
	case "--xz", "-J":
		return func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		}, nil
	case "--gzip", "-z":
		return func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}, nil
	case "--bzip2", "-j":
		return func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown untar_arg %q", untarArg)
	}
}
