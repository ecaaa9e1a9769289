// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package vol

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// Raw volume container format: magic, version, at-rest sample encoding,
// axis table, then samples with the last axis varying fastest.
//
//	[4]byte  magic "FFLY"
//	uint8    container version, currently 1
//	int8     bitpix: -32 float32 LE samples, 8 unsigned byte samples
//	uint8    number of axes
//	per axis:
//	  uint8    length of the axis name
//	  []byte   axis name
//	  int32    number of coordinates, LE
//	  []int32  coordinate labels, LE
//	samples  product(axis lengths) values
var rawMagic = [4]byte{'F', 'F', 'L', 'Y'}

const rawVersion = 1

// Reads a volume from the file with the given name. Decompresses gzip if a
// .gz suffix is present
func NewVolumeFromFile(fileName string, id int, logWriter io.Writer) (*Volume, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if lExt := strings.ToLower(path.Ext(fileName)); lExt == ".gz" || lExt == ".gzip" {
		if r, err = gzip.NewReader(f); err != nil {
			return nil, err
		}
	}

	v, err := ReadVolume(bufio.NewReader(r), id)
	if err != nil {
		return nil, fmt.Errorf("%d: reading %s: %s", id, fileName, err.Error())
	}
	v.FileName = fileName
	if v.Name == "" {
		base := path.Base(fileName)
		v.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	fmt.Fprintf(logWriter, "%d: read %s volume %s with %s\n", id, fileName, v.Name, v.DimensionsToString())
	return v, nil
}

// Reads a volume in raw container format from the given reader
func ReadVolume(r io.Reader, id int) (*Volume, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != rawMagic {
		return nil, fmt.Errorf("not a raw volume, magic %q", magic[:])
	}
	var header struct {
		Version uint8
		Bitpix  int8
		NumAxes uint8
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Version != rawVersion {
		return nil, fmt.Errorf("unsupported container version %d", header.Version)
	}
	if header.Bitpix != -32 && header.Bitpix != 8 {
		return nil, fmt.Errorf("unsupported bitpix %d", header.Bitpix)
	}
	if header.NumAxes == 0 || header.NumAxes > 3 {
		return nil, fmt.Errorf("unsupported number of axes %d", header.NumAxes)
	}

	axes := make([]Axis, header.NumAxes)
	numSamples := 1
	for i := range axes {
		var nameLen uint8
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		var numCoords int32
		if err := binary.Read(r, binary.LittleEndian, &numCoords); err != nil {
			return nil, err
		}
		if numCoords <= 0 {
			return nil, fmt.Errorf("axis %s has %d coordinates", name, numCoords)
		}
		coords := make([]int32, numCoords)
		if err := binary.Read(r, binary.LittleEndian, coords); err != nil {
			return nil, err
		}
		axes[i] = Axis{Name: string(name), Coords: coords}
		numSamples *= int(numCoords)
	}

	data := make([]float32, numSamples)
	if header.Bitpix == 8 {
		buf := make([]byte, numSamples)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		for i, b := range buf {
			data[i] = float32(b)
		}
	} else {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, err
		}
	}

	v := NewVolume("", axes, int32(header.Bitpix), data)
	v.ID = id
	return v, nil
}

// Writes the volume in raw container format to the file with the given
// name. Compresses with gzip if a .gz suffix is present
func (v *Volume) WriteFile(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if lExt := strings.ToLower(path.Ext(fileName)); lExt == ".gz" || lExt == ".gzip" {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	bw := bufio.NewWriter(w)
	if err := v.Write(bw); err != nil {
		return fmt.Errorf("%d: writing %s: %s", v.ID, fileName, err.Error())
	}
	return bw.Flush()
}

// Writes the volume in raw container format to the given writer
func (v *Volume) Write(w io.Writer) error {
	if _, err := w.Write(rawMagic[:]); err != nil {
		return err
	}
	header := struct {
		Version uint8
		Bitpix  int8
		NumAxes uint8
	}{rawVersion, int8(v.Bitpix), uint8(len(v.Axes))}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	for i := range v.Axes {
		ax := &v.Axes[i]
		if len(ax.Name) > 255 {
			return fmt.Errorf("axis name %q too long", ax.Name)
		}
		if err := binary.Write(w, binary.LittleEndian, uint8(len(ax.Name))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(ax.Name)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(ax.Len())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ax.Coords); err != nil {
			return err
		}
	}

	if v.Bitpix == 8 {
		buf := make([]byte, len(v.Data))
		for i, d := range v.Data {
			if d < 0 {
				d = 0
			} else if d > 255 {
				d = 255
			}
			buf[i] = uint8(d)
		}
		_, err := w.Write(buf)
		return err
	}
	return binary.Write(w, binary.LittleEndian, v.Data)
}
