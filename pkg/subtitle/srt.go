package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cicerone/pkg/model"
)

// 00:01:02,345 --> 00:01:04,000
var srtTimeRegex = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// ParseSRTFile reads cues from an SRT subtitle file.
func ParseSRTFile(path string) ([]model.SubtitleCue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()

	var cues []model.SubtitleCue
	scanner := bufio.NewScanner(f)

	var cur *model.SubtitleCue
	var textLines []string

	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(textLines, "\n")
			cues = append(cues, *cur)
			cur = nil
		}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			flush()
			continue
		}

		if m := srtTimeRegex.FindStringSubmatch(line); m != nil {
			flush()
			cur = &model.SubtitleCue{
				Start: srtTime(m[1], m[2], m[3], m[4]),
				End:   srtTime(m[5], m[6], m[7], m[8]),
			}
			continue
		}

		// A bare integer line between blocks is a cue counter; skip it.
		if cur == nil {
			if _, err := strconv.Atoi(line); err == nil {
				continue
			}
			// Stray text outside a cue block; tolerate and skip.
			continue
		}
		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i, c := range cues {
		if c.End <= c.Start {
			return nil, fmt.Errorf("cue %d: end %s not after start %s", i+1, c.End, c.Start)
		}
		if i > 0 && c.Start < cues[i-1].End {
			return nil, fmt.Errorf("cue %d overlaps cue %d", i+1, i)
		}
	}

	return cues, nil
}

func srtTime(h, m, s, ms string) time.Duration {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return time.Duration(hi)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(si)*time.Second +
		time.Duration(msi)*time.Millisecond
}
