package seqindex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"loda/internal/logsink"
	"loda/internal/number"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// SequenceLoader populates a SequenceIndex from a domain's on-disk
// stripped/names/offsets files, the way the OEIS distribution ships
// them. Grounded on seq/sequence_loader.cpp.
type SequenceLoader struct {
	Index       *SequenceIndex
	MinNumTerms int
	Store       BFileStore
	Log         logsink.Logger

	numLoaded int
	numTotal  int
}

// NewSequenceLoader creates a SequenceLoader. store may be nil if the
// loaded domain never needs b-file extension (e.g. a domain whose
// stripped terms are always complete).
func NewSequenceLoader(index *SequenceIndex, minNumTerms int, store BFileStore, log logsink.Logger) *SequenceLoader {
	return &SequenceLoader{Index: index, MinNumTerms: minNumTerms, Store: store, Log: log}
}

// NumLoaded returns how many sequences met MinNumTerms and were added.
func (l *SequenceLoader) NumLoaded() int { return l.numLoaded }

// NumTotal returns how many sequences the stripped file listed, whether
// or not they were added.
func (l *SequenceLoader) NumTotal() int { return l.numTotal }

// Load reads stripped, names and offsets from folder for domain and adds
// every sequence meeting MinNumTerms to Index. Matches
// SequenceLoader::load's three-pass structure.
func (l *SequenceLoader) Load(folder string, domain byte) error {
	if l.Log != nil {
		l.Log.Debug("loading sequences from %s with domain %q", folder, domain)
	}
	if err := l.loadData(folder, domain); err != nil {
		return err
	}
	if err := l.loadNames(folder, domain); err != nil {
		return err
	}
	if err := l.loadOffsets(folder, domain); err != nil {
		return err
	}
	if l.Log != nil {
		l.Log.Info("loaded %d/%d %q-sequences", l.numLoaded, l.numTotal, domain)
	}
	return nil
}

func (l *SequenceLoader) loadData(folder string, domain byte) error {
	path := filepath.Join(folder, "stripped")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sequence data not found: %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		id, terms, err := parseStrippedLine(line, domain)
		if err != nil {
			return err
		}
		l.numTotal++
		if len(terms) < l.MinNumTerms {
			continue
		}
		l.Index.Add(NewWithTerms(id, "", terms, l.Store, l.Log))
		l.numLoaded++
	}
	return sc.Err()
}

// parseStrippedLine parses one "A000001 ,1,1,2,3,...," line into an id
// and its term list, stopping the term scan at the first over-large
// value the way the stripped-file loader does upstream.
func parseStrippedLine(line string, domain byte) (uid.UID, sequence.Sequence, error) {
	if len(line) == 0 || line[0] != domain {
		return uid.UID{}, nil, fmt.Errorf("seqindex: line does not start with domain %q: %q", domain, line)
	}
	i := 1
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 1 || i >= len(line) || line[i] != ' ' {
		return uid.UID{}, nil, fmt.Errorf("seqindex: malformed stripped line: %q", line)
	}
	num, err := strconv.ParseInt(line[1:i], 10, 64)
	if err != nil || num == 0 {
		return uid.UID{}, nil, fmt.Errorf("seqindex: malformed stripped line: %q", line)
	}
	i++ // skip the space
	if i >= len(line) || line[i] != ',' {
		return uid.UID{}, nil, fmt.Errorf("seqindex: malformed stripped line: %q", line)
	}
	i++

	var terms sequence.Sequence
	var buf strings.Builder
	for ; i < len(line); i++ {
		c := line[i]
		switch {
		case c == ',':
			if buf.Len() == 0 {
				continue
			}
			v, err := number.Parse(buf.String())
			if err != nil {
				return uid.UID{}, nil, fmt.Errorf("seqindex: malformed term in %q: %w", line, err)
			}
			buf.Reset()
			if IsTooBig(v) {
				i = len(line)
				continue
			}
			terms = append(terms, v)
		case (c >= '0' && c <= '9') || c == '-':
			buf.WriteByte(c)
		default:
			return uid.UID{}, nil, fmt.Errorf("seqindex: malformed stripped line: %q", line)
		}
	}

	id, err := uid.New(domain, num)
	if err != nil {
		return uid.UID{}, nil, fmt.Errorf("seqindex: %w", err)
	}
	return id, terms, nil
}

func (l *SequenceLoader) loadNames(folder string, domain byte) error {
	path := filepath.Join(folder, "names")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sequence names not found: %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		id, name, err := parseNameLine(line, domain)
		if err != nil {
			return err
		}
		if s, ok := l.Index.Get(id); ok {
			s.Name = name
		}
	}
	return sc.Err()
}

func parseNameLine(line string, domain byte) (uid.UID, string, error) {
	if len(line) == 0 || line[0] != domain {
		return uid.UID{}, "", fmt.Errorf("seqindex: line does not start with domain %q: %q", domain, line)
	}
	i := 1
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 1 || i >= len(line) || line[i] != ' ' {
		return uid.UID{}, "", fmt.Errorf("seqindex: malformed names line: %q", line)
	}
	num, err := strconv.ParseInt(line[1:i], 10, 64)
	if err != nil || num == 0 {
		return uid.UID{}, "", fmt.Errorf("seqindex: malformed names line: %q", line)
	}
	id, err := uid.New(domain, num)
	if err != nil {
		return uid.UID{}, "", fmt.Errorf("seqindex: %w", err)
	}
	return id, line[i+1:], nil
}

func (l *SequenceLoader) loadOffsets(folder string, domain byte) error {
	path := filepath.Join(folder, "offsets")
	f, err := os.Open(path)
	if err != nil {
		// Offsets are optional metadata; unlike stripped/names a missing
		// file is not fatal.
		if l.Log != nil {
			l.Log.Debug("sequence offsets not found: %s", path)
		}
		return nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		idStr, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		id, err := parseLooseUID(idStr)
		if err != nil {
			continue
		}
		offset, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			continue
		}
		if s, ok := l.Index.Get(id); ok {
			s.Offset = offset
		}
	}
	return sc.Err()
}

// CheckConsistency verifies every indexed entry has a name and at least
// MinNumTerms terms, and that the index's total count matches numLoaded,
// matching SequenceLoader::checkConsistency.
func (l *SequenceLoader) CheckConsistency() error {
	if l.Log != nil {
		l.Log.Debug("checking sequence data consistency")
	}
	count := 0
	var err error
	l.Index.Each(func(s *ManagedSequence) {
		if err != nil {
			return
		}
		if s.Name == "" {
			err = fmt.Errorf("seqindex: missing name for sequence %s", s.ID)
			return
		}
		if s.ExistingNumTerms() < l.MinNumTerms {
			err = fmt.Errorf("seqindex: not enough terms for sequence %s (%d<%d)", s.ID, s.ExistingNumTerms(), l.MinNumTerms)
			return
		}
		count++
	})
	if err != nil {
		return err
	}
	if count != l.numLoaded {
		return fmt.Errorf("seqindex: inconsistent number of sequences: %d!=%d", count, l.numLoaded)
	}
	return nil
}

// parseLooseUID parses "A45"-style ids (no zero-padding required),
// matching OeisSequence's tolerant constructor used by the list/offset
// loaders, unlike uid.Parse's strict 7-character form.
func parseLooseUID(s string) (uid.UID, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return uid.UID{}, fmt.Errorf("seqindex: id too short: %q", s)
	}
	domain := s[0]
	num, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return uid.UID{}, fmt.Errorf("seqindex: malformed id %q: %w", s, err)
	}
	return uid.New(domain, num)
}
