package seqindex

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"loda/internal/logsink"
	"loda/internal/uid"
)

// InvalidMatchesFile is the counter file name used by MergeCounts,
// matching OeisList::INVALID_MATCHES_FILE.
const InvalidMatchesFile = "invalid_matches.txt"

// Locker serializes access to a shared folder across processes. A nil
// Locker means no cross-process coordination is attempted; internal/lock
// supplies the real implementation.
type Locker interface {
	Lock(folder string) (unlock func(), err error)
}

// LoadList reads a one-id-per-line list file (protect.txt, deny.txt,
// overwrite.txt, full_check.txt) into a uid.Set. Lines may carry a
// trailing ":"/";" comment, stripped the way OeisList::loadList does.
// A missing file yields an empty set and a logged warning, not an error.
func LoadList(path string, log logsink.Logger) (*uid.Set, error) {
	if log != nil {
		log.Debug("loading list %s", path)
	}
	set := uid.NewSet()
	f, err := os.Open(path)
	if err != nil {
		if log != nil {
			log.Warn("sequence list not found: %s", path)
		}
		return set, nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		id, err := parseListID(line)
		if err != nil {
			return nil, err
		}
		set.Insert(id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if log != nil {
		log.Debug("finished loading of list %s with %d entries", path, set.Len())
	}
	return set, nil
}

// parseListID strips a trailing ":"/";"/whitespace comment and parses
// the remaining id prefix loosely (no zero-padding required).
func parseListID(line string) (uid.UID, error) {
	cut := len(line)
	for i, ch := range line {
		if ch == ':' || ch == ';' || ch == ' ' || ch == '\t' {
			cut = i
			break
		}
	}
	return parseLooseUID(line[:cut])
}

// LoadOffsetComments reads an id:comment-per-line file (offsets) into a
// map, matching OeisList::loadMapWithComments.
func LoadOffsetComments(path string, log logsink.Logger) (map[uid.UID]string, error) {
	if log != nil {
		log.Debug("loading map %s", path)
	}
	m := make(map[uid.UID]string)
	f, err := os.Open(path)
	if err != nil {
		if log != nil {
			log.Warn("sequence list not found: %s", path)
		}
		return m, nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		idStr, comment, _ := strings.Cut(line, ":")
		id, err := parseLooseUID(idStr)
		if err != nil {
			return nil, err
		}
		m[id] = strings.TrimSpace(comment)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if log != nil {
		log.Debug("finished loading of list %s with %d entries", path, len(m))
	}
	return m, nil
}

// LoadCounts reads an "id: value" per-line counter file into a map,
// matching OeisList::loadMap/addToMap. Returns false, nil if the file
// does not exist.
func LoadCounts(path string, log logsink.Logger) (map[uid.UID]int64, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, nil
	}
	defer f.Close()
	if log != nil {
		log.Debug("loading map %s", path)
	}
	m := make(map[uid.UID]int64)
	if err := addToCounts(f, m); err != nil {
		return nil, false, err
	}
	if log != nil {
		log.Debug("finished loading of map %s with %d entries", path, len(m))
	}
	return m, true, nil
}

func addToCounts(f *os.File, m map[uid.UID]int64) error {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		var idPart, valPart strings.Builder
		inValue := false
		for _, ch := range line {
			switch ch {
			case ':', ';', ',', ' ', '\t':
				inValue = true
			default:
				if inValue {
					valPart.WriteRune(ch)
				} else {
					idPart.WriteRune(ch)
				}
			}
		}
		if idPart.Len() == 0 || valPart.Len() == 0 {
			return fmt.Errorf("seqindex: error parsing line: %q", line)
		}
		id, err := parseLooseUID(idPart.String())
		if err != nil {
			return err
		}
		v, err := strconv.ParseInt(valPart.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("seqindex: error parsing count in %q: %w", line, err)
		}
		m[id] += v
	}
	return sc.Err()
}

// MergeCounts round-trips a counter file under folder: it loads any
// existing counts, adds delta on top, writes the merged totals back out
// sorted by id, and clears delta. A corrupt existing file is logged and
// overwritten rather than treated as fatal, matching
// OeisList::mergeMap. locker may be nil to skip cross-process locking.
func MergeCounts(locker Locker, folder, fileName string, delta map[uid.UID]int64, log logsink.Logger) error {
	if strings.ContainsRune(fileName, os.PathSeparator) {
		return fmt.Errorf("seqindex: invalid file name for merging map: %s", fileName)
	}
	if locker != nil {
		unlock, err := locker.Lock(folder)
		if err != nil {
			return err
		}
		defer unlock()
	}

	path := folder + string(os.PathSeparator) + fileName
	if f, err := os.Open(path); err == nil {
		if err := addToCounts(f, delta); err != nil && log != nil {
			log.Warn("overwriting corrupt data in %s", fileName)
		}
		f.Close()
	}

	ids := make([]uid.UID, 0, len(delta))
	for id := range delta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "%s: %d\n", id, delta[id]); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for id := range delta {
		delete(delta, id)
	}
	return nil
}
