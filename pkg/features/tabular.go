package features

import (
	"bufio"
	"strings"
	"unicode"
)

const (
	csvSampleLines = 100
	csvMaxLineLen  = 1 << 20
)

// csvSeparators is ordered; ties resolve to the earliest entry.
var csvSeparators = []string{",", ";", "\t", "|"}

type tabularExtractor struct{}

func (tabularExtractor) extract(src source) (map[string]float64, map[string]string) {
	rc, err := src.reader()
	if err != nil {
		return nil, map[string]string{"csv_error": err.Error()}
	}
	defer rc.Close()

	var lines []string
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), csvMaxLineLen)
	for len(lines) < csvSampleLines && sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, map[string]string{"csv_error": err.Error()}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	sep := sniffSeparator(lines[0])

	var fields int
	for _, l := range lines {
		fields += strings.Count(l, sep) + 1
	}

	return map[string]float64{
		"csv_lines_sampled": float64(len(lines)),
		"csv_separator":     float64(sep[0]),
		"csv_avg_fields":    float64(fields) / float64(len(lines)),
		"csv_has_header":    flag(strings.IndexFunc(lines[0], unicode.IsLetter) >= 0),
	}, nil
}

// sniffSeparator picks the separator occurring most often in the header line.
func sniffSeparator(line string) string {
	sep, best := csvSeparators[0], -1
	for _, candidate := range csvSeparators {
		if n := strings.Count(line, candidate); n > best {
			sep, best = candidate, n
		}
	}
	return sep
}
