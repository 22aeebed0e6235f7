// Package normalize turns a raw survey-form export into the cleaned table the
// scorer consumes.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pavelanni/quizgrader/internal/model"
)

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	meridiemPattern = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})\s*(上午|下午)\s*(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
)

const placeholderPrefix = "Unnamed"

// Normalize returns a cleaned copy of t:
// answer columns renamed q1..qN, columns holding email addresses and
// placeholder columns dropped, timestamps canonicalized with the first row's
// timestamp blanked for the answer key.
func Normalize(t model.Table, cfg model.NormalizeConfig) model.Table {
	out := t.Clone()
	out.Pad()

	n := 0
	for i, h := range out.Header {
		if cfg.AnswerMarker != "" && strings.Contains(h, cfg.AnswerMarker) {
			n++
			out.Header[i] = "q" + strconv.Itoa(n)
		}
	}

	var keep []int
	for i, h := range out.Header {
		if strings.HasPrefix(h, placeholderPrefix) || strings.TrimSpace(h) == "" {
			continue
		}
		if columnHasEmail(out, i) {
			continue
		}
		keep = append(keep, i)
	}
	out = project(out, keep)

	if ts := out.ColumnIndex(cfg.TimestampColumn); ts >= 0 && len(out.Rows) > 0 {
		out.Rows[0][ts] = ""
		for _, row := range out.Rows[1:] {
			if !model.IsNull(row[ts]) {
				row[ts] = FormatTimestamp(row[ts])
			}
		}
	}
	return out
}

// FormatTimestamp renders a timestamp in the canonical layout. Values that do
// not parse are returned unchanged.
func FormatTimestamp(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format(model.TimestampLayout)
}

// ParseTimestamp parses the timestamp formats survey exports produce,
// including the Chinese 上午/下午 meridiem form.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if m := meridiemPattern.FindStringSubmatch(s); m != nil {
		return parseMeridiem(m)
	}
	return dateparse.ParseIn(s, time.UTC)
}

func parseMeridiem(m []string) (time.Time, error) {
	num := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	year, month, day := num(m[1]), num(m[2]), num(m[3])
	hour, minute, sec := num(m[5]), num(m[6]), num(m[7])
	if hour < 1 || hour > 12 || month < 1 || month > 12 || day < 1 || day > 31 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q", m[0])
	}
	hour %= 12
	if m[4] == "下午" {
		hour += 12
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), nil
}

func columnHasEmail(t model.Table, col int) bool {
	for _, row := range t.Rows {
		if emailPattern.MatchString(row[col]) {
			return true
		}
	}
	return false
}

func project(t model.Table, cols []int) model.Table {
	out := model.Table{Header: make([]string, 0, len(cols))}
	for _, c := range cols {
		out.Header = append(out.Header, t.Header[c])
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]string, 0, len(cols))
		for _, c := range cols {
			r = append(r, row[c])
		}
		out.Rows[i] = r
	}
	return out
}
