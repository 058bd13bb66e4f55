package oracle

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkingFilter forwards only the text inside <think> blocks while a
// completion streams in. Tags may be split across chunks.
type thinkingFilter struct {
	inside  bool
	pending string
	out     func(string)
}

func newThinkingFilter(out func(string)) *thinkingFilter {
	return &thinkingFilter{out: out}
}

func (f *thinkingFilter) Write(chunk string) {
	if f.out == nil {
		return
	}
	buf := f.pending + chunk
	f.pending = ""
	for buf != "" {
		tag := thinkOpen
		if f.inside {
			tag = thinkClose
		}
		idx := strings.Index(buf, tag)
		if idx < 0 {
			keep := partialSuffix(buf, tag)
			if f.inside && len(buf)-keep > 0 {
				f.out(buf[:len(buf)-keep])
			}
			f.pending = buf[len(buf)-keep:]
			return
		}
		if f.inside && idx > 0 {
			f.out(buf[:idx])
		}
		f.inside = !f.inside
		buf = buf[idx+len(tag):]
	}
}

// partialSuffix returns the length of the longest suffix of s that is a
// prefix of tag.
func partialSuffix(s, tag string) int {
	for n := min(len(tag)-1, len(s)); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
