package objectstore

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const publicBaseURL = "https://storage.googleapis.com/"

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// cleanFolder sanitizes each segment of folder and drops empty, "." and ".."
// segments, so a caller-supplied folder can't escape the bucket root.
func cleanFolder(folder string) string {
	var segs []string
	for _, s := range strings.Split(folder, "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		segs = append(segs, SanitizeFilename(s))
	}
	return strings.Join(segs, "/")
}

// ObjectPath joins folder and "<stamp>-<sanitized filename>".
func ObjectPath(folder string, stamp int64, filename string) string {
	name := strconv.FormatInt(stamp, 10) + "-" + SanitizeFilename(filename)
	if f := cleanFolder(folder); f != "" {
		return f + "/" + name
	}
	return name
}

// PublicURL returns the public object URL for path in bucket.
func PublicURL(bucket, path string) string {
	return publicBaseURL + bucket + "/" + path
}

// stamper hands out millisecond timestamps that strictly increase within the
// process, so two uploads of the same name never share a path.
type stamper struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (s *stamper) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return ms
}
