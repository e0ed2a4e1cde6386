package render

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// readProgress consumes ffmpeg's -progress key=value stream until EOF and
// reports completion as a fraction of total seconds. out_time_ms is in
// microseconds despite its name, same as out_time_us.
func readProgress(r io.Reader, total float64, report func(float64)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 || total <= 0 || report == nil {
				continue
			}
			report(min(float64(us)/1e6/total, 1))
		case "progress":
			if value == "end" && report != nil {
				report(1)
			}
		}
	}
	// Drain so ffmpeg never blocks on a full pipe after a scanner error.
	_, _ = io.Copy(io.Discard, r)
}
