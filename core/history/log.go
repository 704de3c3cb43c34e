package history

import (
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/codepulse/internal/contract"
)

// CommitRecord is one commit touching a path, with the lines it changed there.
type CommitRecord struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Added   int       `json:"added"`
	Removed int       `json:"removed"`
}

// parseLog groups "git log --numstat" output by the current name of each path.
// Renamed paths are attributed to their new name.
func parseLog(out []byte) map[string][]CommitRecord {
	byPath := make(map[string][]CommitRecord)
	var current CommitRecord
	inCommit := false

	for _, l := range strings.Split(string(out), "\n") {
		l = strings.Trim(l, " \t\r'")
		if strings.HasPrefix(l, contract.LogHeaderPrefix) {
			current, inCommit = parseCommitHeader(l)
			continue
		}
		if l == "" || !inCommit {
			continue
		}
		path, added, removed, ok := parseNumstatLine(l)
		if !ok {
			continue
		}
		commits := byPath[path]
		if n := len(commits); n > 0 && commits[n-1].Hash == current.Hash {
			commits[n-1].Added += added
			commits[n-1].Removed += removed
			continue
		}
		rec := current
		rec.Added, rec.Removed = added, removed
		byPath[path] = append(commits, rec)
	}
	return byPath
}

// parseCommitHeader reads "--<hash>|<author>|<date>". Authors may contain '|'.
func parseCommitHeader(line string) (CommitRecord, bool) {
	body := strings.TrimPrefix(line, contract.LogHeaderPrefix)
	first := strings.IndexByte(body, '|')
	last := strings.LastIndexByte(body, '|')
	if first <= 0 || last == first {
		return CommitRecord{}, false
	}
	rec := CommitRecord{
		Hash:   body[:first],
		Author: body[first+1 : last],
	}
	if date, err := time.Parse(time.RFC3339, body[last+1:]); err == nil {
		rec.Date = date
	}
	return rec, true
}

// parseNumstatLine reads "added\tremoved\tpath". Binary files report "-".
func parseNumstatLine(line string) (string, int, int, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return "", 0, 0, false
	}
	path := contract.UnquotePath(parts[2])
	if strings.Contains(path, " => ") {
		_, newPath := parseRenamePath(path)
		if newPath == "" {
			return "", 0, 0, false
		}
		path = contract.UnquotePath(newPath)
	}
	return path, parseLineCount(parts[0]), parseLineCount(parts[1]), true
}

func parseLineCount(s string) int {
	if s == "-" {
		return 0
	}
	if val, err := strconv.Atoi(s); err == nil && val >= 0 {
		return val
	}
	return 0
}

// parseRenamePath extracts old and new paths from "old => new" or "prefix/{old => new}/suffix".
func parseRenamePath(path string) (string, string) {
	braceStart := strings.IndexByte(path, '{')
	braceEnd := strings.IndexByte(path, '}')
	if braceStart == -1 {
		parts := strings.SplitN(path, " => ", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return "", ""
	}
	if braceEnd == -1 || braceStart >= braceEnd {
		return "", ""
	}

	prefix, suffix := path[:braceStart], path[braceEnd+1:]
	parts := strings.SplitN(path[braceStart+1:braceEnd], " => ", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return joinRename(prefix, parts[0], suffix), joinRename(prefix, parts[1], suffix)
}

// joinRename rebuilds a path from a brace rename, where either side may be empty.
func joinRename(prefix, middle, suffix string) string {
	if middle == "" {
		return prefix + strings.TrimPrefix(suffix, "/")
	}
	return prefix + middle + suffix
}

// parseBlame counts "author " lines of "git blame --line-porcelain" output.
func parseBlame(out []byte) map[string]int {
	lines := make(map[string]int)
	for _, l := range strings.Split(string(out), "\n") {
		if author, ok := strings.CutPrefix(l, "author "); ok {
			lines[strings.TrimSpace(author)]++
		}
	}
	return lines
}
