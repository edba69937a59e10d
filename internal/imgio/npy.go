// Package imgio implements the on-disk NPY and single-channel TIFF codecs
// the calibration store round-trips references and bad-pixel masks
// through. No example in the reference pack carries a numpy/tifffile
// equivalent (checked: the teacher only references "image/jpeg" as a MIME
// constant, and the zero-dependency webp example carries no array
// serialization either), so this package is one of the deliberate exceptions
// to "never fall back to the standard library" — see DESIGN.md.
package imgio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
)

const npyMagic = "\x93NUMPY"

// SaveNPY writes a 2-D float32 array in numpy's .npy format, row-major,
// matching np.save's on-disk layout for a (height, width) float32 array.
func SaveNPY(path string, width, height int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := writeNPY(w, width, height, samples); err != nil {
		return err
	}
	return w.Flush()
}

func writeNPY(w io.Writer, width, height int, samples []float32) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", height, width)
	// Pad header so magic(6)+version(2)+headerlen(2)+header is a multiple of 64,
	// with a trailing newline, matching numpy's format 1.0 layout.
	const prefixLen = len(npyMagic) + 2 + 2
	total := prefixLen + len(header) + 1
	pad := (64 - total%64) % 64
	header += string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	if _, err := io.WriteString(w, npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil { // version 1.0
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, samples)
}

// LoadNPY reads a 2-D float32 array previously written by SaveNPY (or by
// numpy itself, for the float32 2-D case). Returns width, height, samples.
func LoadNPY(path string) (width, height int, samples []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, 0, nil, err
	}
	if string(magic) != npyMagic {
		return 0, 0, nil, fmt.Errorf("imgio: not an npy file: %s", path)
	}
	ver := make([]byte, 2)
	if _, err := io.ReadFull(r, ver); err != nil {
		return 0, 0, nil, err
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return 0, 0, nil, err
	}
	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, nil, err
	}
	h, w, err := parseShape(string(header))
	if err != nil {
		return 0, 0, nil, err
	}
	samples = make([]float32, w*h)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return 0, 0, nil, err
	}
	return w, h, samples, nil
}

// parseShape extracts (rows, cols) from the textual "shape': (H, W)," field
// of a numpy header dict without a full Python-literal parser.
func parseShape(header string) (rows, cols int, err error) {
	const key = "'shape':"
	i := bytes.Index([]byte(header), []byte(key))
	if i < 0 {
		return 0, 0, fmt.Errorf("imgio: no shape field in npy header")
	}
	rest := header[i+len(key):]
	open := bytes.IndexByte([]byte(rest), '(')
	close := bytes.IndexByte([]byte(rest), ')')
	if open < 0 || close < 0 || close < open {
		return 0, 0, fmt.Errorf("imgio: malformed shape field")
	}
	parts := bytes.Split([]byte(rest[open+1:close]), []byte(","))
	var dims []int
	for _, p := range parts {
		s := string(bytes.TrimSpace(p))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("imgio: bad shape dimension %q: %w", s, err)
		}
		dims = append(dims, n)
	}
	switch len(dims) {
	case 2:
		return dims[0], dims[1], nil
	default:
		return 0, 0, fmt.Errorf("imgio: expected a 2-D shape, got %v", dims)
	}
}
