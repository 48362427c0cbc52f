// Package crystfel reads and writes the plain-text panel geometry
// description consumed by downstream crystallography tools. The format is
// line-oriented `key = value` pairs with `;` comments; per-tile keys are
// prefixed with a p{module}a{asic} panel identifier.
package crystfel

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"geoassembler/pkg/geometry"
)

// FormatVersion is stamped into the banner of written files.
const FormatVersion = "1.0"

// headerTemplate is the fixed boilerplate written before the caller's
// header and the panel records. The rigid group declarations enumerate the
// fixed tile identifiers per quadrant and per module; they are boilerplate
// for this detector, not regenerated from data.
const headerTemplate = `; AGIPD-1M geometry file written by geoassembler %s
; You may need to edit this file to add:
; - data and mask locations in the file
; - mask_good & mask_bad values to interpret the mask
; - adu_per_eV & photon_energy
; - clen (detector distance)
;
; See: http://www.desy.de/~twhite/crystfel/manual-crystfel_geometry.html

%s
dim0 = %%
res = 5000 ; 200 um pixels
rigid_group_q0 = p0a0,p0a1,p0a2,p0a3,p0a4,p0a5,p0a6,p0a7,p1a0,p1a1,p1a2,p1a3,p1a4,p1a5,p1a6,p1a7,p2a0,p2a1,p2a2,p2a3,p2a4,p2a5,p2a6,p2a7,p3a0,p3a1,p3a2,p3a3,p3a4,p3a5,p3a6,p3a7
rigid_group_q1 = p4a0,p4a1,p4a2,p4a3,p4a4,p4a5,p4a6,p4a7,p5a0,p5a1,p5a2,p5a3,p5a4,p5a5,p5a6,p5a7,p6a0,p6a1,p6a2,p6a3,p6a4,p6a5,p6a6,p6a7,p7a0,p7a1,p7a2,p7a3,p7a4,p7a5,p7a6,p7a7
rigid_group_q2 = p8a0,p8a1,p8a2,p8a3,p8a4,p8a5,p8a6,p8a7,p9a0,p9a1,p9a2,p9a3,p9a4,p9a5,p9a6,p9a7,p10a0,p10a1,p10a2,p10a3,p10a4,p10a5,p10a6,p10a7,p11a0,p11a1,p11a2,p11a3,p11a4,p11a5,p11a6,p11a7
rigid_group_q3 = p12a0,p12a1,p12a2,p12a3,p12a4,p12a5,p12a6,p12a7,p13a0,p13a1,p13a2,p13a3,p13a4,p13a5,p13a6,p13a7,p14a0,p14a1,p14a2,p14a3,p14a4,p14a5,p14a6,p14a7,p15a0,p15a1,p15a2,p15a3,p15a4,p15a5,p15a6,p15a7

rigid_group_p0 = p0a0,p0a1,p0a2,p0a3,p0a4,p0a5,p0a6,p0a7
rigid_group_p1 = p1a0,p1a1,p1a2,p1a3,p1a4,p1a5,p1a6,p1a7
rigid_group_p2 = p2a0,p2a1,p2a2,p2a3,p2a4,p2a5,p2a6,p2a7
rigid_group_p3 = p3a0,p3a1,p3a2,p3a3,p3a4,p3a5,p3a6,p3a7
rigid_group_p4 = p4a0,p4a1,p4a2,p4a3,p4a4,p4a5,p4a6,p4a7
rigid_group_p5 = p5a0,p5a1,p5a2,p5a3,p5a4,p5a5,p5a6,p5a7
rigid_group_p6 = p6a0,p6a1,p6a2,p6a3,p6a4,p6a5,p6a6,p6a7
rigid_group_p7 = p7a0,p7a1,p7a2,p7a3,p7a4,p7a5,p7a6,p7a7
rigid_group_p8 = p8a0,p8a1,p8a2,p8a3,p8a4,p8a5,p8a6,p8a7
rigid_group_p9 = p9a0,p9a1,p9a2,p9a3,p9a4,p9a5,p9a6,p9a7
rigid_group_p10 = p10a0,p10a1,p10a2,p10a3,p10a4,p10a5,p10a6,p10a7
rigid_group_p11 = p11a0,p11a1,p11a2,p11a3,p11a4,p11a5,p11a6,p11a7
rigid_group_p12 = p12a0,p12a1,p12a2,p12a3,p12a4,p12a5,p12a6,p12a7
rigid_group_p13 = p13a0,p13a1,p13a2,p13a3,p13a4,p13a5,p13a6,p13a7
rigid_group_p14 = p14a0,p14a1,p14a2,p14a3,p14a4,p14a5,p14a6,p14a7
rigid_group_p15 = p15a0,p15a1,p15a2,p15a3,p15a4,p15a5,p15a6,p15a7

rigid_group_collection_quadrants = q0,q1,q2,q3
rigid_group_collection_asics = p0,p1,p2,p3,p4,p5,p6,p7,p8,p9,p10,p11,p12,p13,p14,p15

`

// panelTemplate is the record block emitted once per tile. The dimension
// and min/max keys are fixed-form passthrough keys kept for downstream
// consumers; only the vectors and corner are interpreted on parse.
const panelTemplate = `
%[1]s/dim1 = %[2]d
%[1]s/dim2 = ss
%[1]s/dim3 = fs
%[1]s/min_fs = 0
%[1]s/min_ss = %[3]d
%[1]s/max_fs = 127
%[1]s/max_ss = %[4]d
%[1]s/fs = %[5]s
%[1]s/ss = %[6]s
%[1]s/corner_x = %[7]s
%[1]s/corner_y = %[8]s
%[1]s/coffset = %[9]s
`

// Write emits the geometry description: boilerplate banner, the caller's
// header verbatim, the rigid group declarations, and one record block per
// tile in module-major, asic-minor order.
func Write(w io.Writer, det *geometry.Detector, header string) error {
	if _, err := fmt.Fprintf(w, headerTemplate, FormatVersion, header); err != nil {
		return err
	}
	for m := 0; m < geometry.NumModules; m++ {
		for a := 0; a < geometry.TilesPerModule; a++ {
			if err := writePanel(w, det.Fragment(m, a), m, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePanel(w io.Writer, f geometry.TileFragment, m, a int) error {
	name := fmt.Sprintf("p%da%d", m, a)
	_, err := fmt.Fprintf(w, panelTemplate,
		name, m,
		a*geometry.TileSSPixels,
		(a+1)*geometry.TileSSPixels-1,
		formatVec(f.FSVec),
		formatVec(f.SSVec),
		formatFloat(f.CornerPos[0]),
		formatFloat(f.CornerPos[1]),
		formatFloat(f.CornerPos[2]),
	)
	return err
}

// WriteFile writes the geometry description to a file in one shot. A
// failed write may leave a truncated file behind; there is no partial
// cleanup.
func WriteFile(path string, det *geometry.Detector, header string) error {
	var buf bytes.Buffer
	if err := Write(&buf, det, header); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// formatFloat renders a float with the shortest decimal representation,
// keeping at least one fractional digit so that integral corners read as
// e.g. "-525.0". Corner positions are integers after snapping, so this
// encoding round-trips them exactly.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// formatVec renders a basis vector in the signed component encoding
// "+1.0x -1.0y", with the z component included only when nonzero.
func formatVec(v [3]float64) string {
	signed := func(c float64) string {
		s := formatFloat(c)
		if c >= 0 {
			s = "+" + s
		}
		return s
	}
	out := fmt.Sprintf("%sx %sy", signed(v[0]), signed(v[1]))
	if v[2] != 0 {
		out += fmt.Sprintf(" %sz", signed(v[2]))
	}
	return out
}

// Parse reads a geometry description and reconstructs the detector. All
// 128 tile identifiers must carry the required ss, fs, corner_x and
// corner_y keys; a missing or unparseable key fails the whole parse with a
// *geometry.MalformedGeometryError naming the tile, and never yields a
// partially built detector. Quadrant anchors are reconstructed from the
// corner of each quadrant's first tile.
func Parse(data []byte) (*geometry.Detector, error) {
	panels := make(map[[2]int]map[string]string)

	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])

		slash := strings.IndexByte(key, '/')
		if slash < 0 {
			// Header keys (clen, photon_energy, rigid groups, ...) are
			// opaque to the geometry model.
			continue
		}
		m, a, ok := parsePanelName(key[:slash])
		if !ok {
			continue
		}
		field := key[slash+1:]
		if panels[[2]int{m, a}] == nil {
			panels[[2]int{m, a}] = make(map[string]string)
		}
		panels[[2]int{m, a}][field] = value
	}

	var modules [geometry.NumModules][geometry.TilesPerModule]geometry.TileFragment
	for m := 0; m < geometry.NumModules; m++ {
		for a := 0; a < geometry.TilesPerModule; a++ {
			fields := panels[[2]int{m, a}]
			frag, err := panelFragment(fields, m, a)
			if err != nil {
				return nil, err
			}
			modules[m][a] = frag
		}
	}

	var quadPos [geometry.NumQuadrants][2]float64
	for q := 0; q < geometry.NumQuadrants; q++ {
		c := modules[q*4][0].CornerPos
		quadPos[q] = [2]float64{c[0], c[1]}
	}
	return geometry.New(modules, quadPos)
}

// ParseFile reads and parses a geometry description file.
func ParseFile(path string) (*geometry.Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func parsePanelName(name string) (module, asic int, ok bool) {
	if !strings.HasPrefix(name, "p") {
		return 0, 0, false
	}
	rest := name[1:]
	sep := strings.IndexByte(rest, 'a')
	if sep < 0 {
		return 0, 0, false
	}
	m, err1 := strconv.Atoi(rest[:sep])
	a, err2 := strconv.Atoi(rest[sep+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if m < 0 || m >= geometry.NumModules || a < 0 || a >= geometry.TilesPerModule {
		return 0, 0, false
	}
	return m, a, true
}

func panelFragment(fields map[string]string, m, a int) (geometry.TileFragment, error) {
	malformed := func(format string, args ...interface{}) error {
		return &geometry.MalformedGeometryError{
			Module: m,
			Asic:   a,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	need := func(key string) (string, error) {
		v, ok := fields[key]
		if !ok {
			return "", malformed("missing key %q", key)
		}
		return v, nil
	}

	ssRaw, err := need("ss")
	if err != nil {
		return geometry.TileFragment{}, err
	}
	fsRaw, err := need("fs")
	if err != nil {
		return geometry.TileFragment{}, err
	}
	cxRaw, err := need("corner_x")
	if err != nil {
		return geometry.TileFragment{}, err
	}
	cyRaw, err := need("corner_y")
	if err != nil {
		return geometry.TileFragment{}, err
	}

	ssVec, err := parseVec(ssRaw)
	if err != nil {
		return geometry.TileFragment{}, malformed("bad ss vector %q: %v", ssRaw, err)
	}
	fsVec, err := parseVec(fsRaw)
	if err != nil {
		return geometry.TileFragment{}, malformed("bad fs vector %q: %v", fsRaw, err)
	}
	cx, err := strconv.ParseFloat(cxRaw, 64)
	if err != nil {
		return geometry.TileFragment{}, malformed("bad corner_x %q", cxRaw)
	}
	cy, err := strconv.ParseFloat(cyRaw, 64)
	if err != nil {
		return geometry.TileFragment{}, malformed("bad corner_y %q", cyRaw)
	}

	cz := 0.0
	if raw, ok := fields["coffset"]; ok {
		cz, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return geometry.TileFragment{}, malformed("bad coffset %q", raw)
		}
	}

	return geometry.NewTileFragment([3]float64{cx, cy, cz}, ssVec, fsVec), nil
}

// parseVec parses the signed component encoding "+1.0x -1.0y [+0.0z]".
// Component order is not significant; x and y are required.
func parseVec(raw string) ([3]float64, error) {
	var vec [3]float64
	var haveX, haveY bool
	for _, tok := range strings.Fields(raw) {
		if len(tok) < 2 {
			return vec, fmt.Errorf("component %q too short", tok)
		}
		axis := tok[len(tok)-1]
		val, err := strconv.ParseFloat(tok[:len(tok)-1], 64)
		if err != nil {
			return vec, fmt.Errorf("component %q: %v", tok, err)
		}
		switch axis {
		case 'x':
			vec[0], haveX = val, true
		case 'y':
			vec[1], haveY = val, true
		case 'z':
			vec[2] = val
		default:
			return vec, fmt.Errorf("unknown axis %q", string(axis))
		}
	}
	if !haveX || !haveY {
		return vec, fmt.Errorf("missing x or y component")
	}
	return vec, nil
}
