package description

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// parseLegacy reads the joinTMX line format:
//
//	tilesize 32
//	continent NAME WIDTH HEIGHT
//	offset X Y
//	map NAME X Y
//
// Lines starting with anything else are ignored.
func parseLegacy(data []byte) (*Description, error) {
	d := &Description{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "tilesize":
			err = legacyInts(fields, 1, &d.TileSize)
		case "continent":
			if len(fields) != 4 {
				err = errors.New("want \"continent NAME WIDTH HEIGHT\"")
				break
			}
			d.Name = fields[1]
			err = legacyInts(fields[1:], 2, &d.Width, &d.Height)
		case "offset":
			err = legacyInts(fields, 2, &d.Offset.X, &d.Offset.Y)
		case "map":
			if len(fields) != 4 {
				err = errors.New("want \"map NAME X Y\"")
				break
			}
			m := MapEntry{Name: fields[1]}
			if err = legacyInts(fields[1:], 2, &m.X, &m.Y); err == nil {
				d.Maps = append(d.Maps, m)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, fields[0], err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// legacyInts parses the n fields after fields[0] into dst.
func legacyInts(fields []string, n int, dst ...*int) error {
	if len(fields) != n+1 {
		return fmt.Errorf("want %d value(s), got %d", n, len(fields)-1)
	}
	for i, p := range dst {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return fmt.Errorf("value %q: %w", fields[i+1], err)
		}
		*p = v
	}
	return nil
}
