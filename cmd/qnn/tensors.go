package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samcharles93/qnn/internal/tensor"
	"github.com/samcharles93/qnn/pkg/qtf"
)

func isQTF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".qtf")
}

// loadDumps reads tensors from a .qtf file, a JSON dump file, or stdin ("-").
func loadDumps(path string) ([]tensor.Dump, error) {
	if isQTF(path) {
		return loadQTF(path)
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	dumps, err := tensor.DecodeDumps(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return dumps, nil
}

func loadQTF(path string) ([]tensor.Dump, error) {
	qf, err := qtf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = qf.Close() }()

	dumps := make([]tensor.Dump, 0, len(qf.Tensors))
	for i := range qf.Tensors {
		t := &qf.Tensors[i]
		dumps = append(dumps, tensor.Dump{
			Name:     t.Name,
			DType:    t.DType.String(),
			Shape:    slices.Clone(t.Shape),
			Exponent: t.Exponent,
			Data:     qf.Values(t),
		})
	}
	return dumps, nil
}

// writeDumps writes JSON to stdout ("" or "-"), a .qtf file, or a JSON file.
func writeDumps(path string, dumps []tensor.Dump) error {
	switch {
	case path == "" || path == "-":
		return tensor.EncodeDumps(os.Stdout, dumps)
	case isQTF(path):
		return writeQTF(path, dumps)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tensor.EncodeDumps(f, dumps); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeQTF(path string, dumps []tensor.Dump) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w, err := qtf.NewWriter(f)
	if err != nil {
		return err
	}
	for i, d := range dumps {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("tensor_%d", i)
		}
		if err := writeDump(w, name, d); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
	}
	if err := w.Finalise(); err != nil {
		return err
	}
	return f.Close()
}

func writeDump(w *qtf.Writer, name string, d tensor.Dump) error {
	switch d.DType {
	case tensor.DTypeInt8:
		t, err := tensor.FromDump[int8](d)
		if err != nil {
			return err
		}
		return w.WriteInt8(name, t.Shape, t.Exponent, t.Element)
	case tensor.DTypeInt16:
		t, err := tensor.FromDump[int16](d)
		if err != nil {
			return err
		}
		return w.WriteInt16(name, t.Shape, t.Exponent, t.Element)
	default:
		return fmt.Errorf("unsupported dtype %q", d.DType)
	}
}

// selectDump picks the named tensor, or returns every dump when name is empty.
func selectDump(dumps []tensor.Dump, name string) ([]tensor.Dump, error) {
	if name == "" {
		return dumps, nil
	}
	for _, d := range dumps {
		if d.Name == name {
			return []tensor.Dump{d}, nil
		}
	}
	return nil, fmt.Errorf("tensor %q not found", name)
}
