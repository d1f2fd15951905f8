package upstream

import (
	"bufio"
	"io"
	"time"
)

// scanLines reads r line by line until EOF or a read error, invoking f for
// each line. Used for the upstream stderr tee: stderr is
// free-form diagnostic text, not JSON-RPC, so it gets a plain line scanner
// rather than wire.Decoder.
func scanLines(r io.Reader, f func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		f(sc.Text())
	}
}

// nowUnix returns the current wall-clock time in unix seconds, used to
// stamp SessionRecord.CapturedAt at first observation.
func nowUnix() int64 {
	return time.Now().Unix()
}
