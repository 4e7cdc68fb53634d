// Package stats implements the corpus-wide aggregation described in
// spec section 4.12: per-program metadata (length, usages, inc/log-eval
// support), frequency tables over constants/operations/operation
// positions, the call graph induced by `seq` calls, and the blocks
// collector used to bias program generation.
//
// Grounded on _examples/original_source/src/mine/stats.cpp/.hpp.
package stats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"loda/internal/analyzer"
	"loda/internal/asm"
	"loda/internal/evaluator"
	"loda/internal/inceval"
	"loda/internal/interp"
	"loda/internal/logsink"
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/uid"
)

// Header lines written atop the CSV-like corpus files, matching the
// upstream Stats::*_HEADER constants.
const (
	CallGraphHeader = "caller,callee"
	ProgramsHeader  = "id,length,usages,inc_eval,log_eval"
	StepsHeader     = "total,min,max,runs"
	SummaryHeader   = "num_sequences,num_programs,num_formulas"
)

// Stats is the corpus-wide aggregate. All exported maps/sets are
// safe to read directly; mutation should go through UpdateProgramStats/
// UpdateSequenceStats so derived fields (blocks, call graph) stay
// consistent.
type Stats struct {
	NumPrograms  int64
	NumSequences int64
	NumFormulas  int64
	Steps        evaluator.Steps

	NumOpsPerType        []int64
	NumProgramsPerLength []int64

	ProgramLengths  map[uid.UID]int64
	ProgramUsages   map[uid.UID]int64
	SubmitterOf     map[uid.UID]string
	CallGraph       map[uid.UID][]uid.UID
	AllProgramIDs   *uid.Set
	LatestProgramID *uid.Set
	SupportsIncEval *uid.Set
	SupportsLogEval *uid.Set

	Blocks *Blocks

	Log logsink.Logger

	numConstants          map[string]int64
	numOperations         map[string]int64
	numOperationPositions map[string]int64

	blocksCollector *BlockCollector

	mu              sync.Mutex
	visited         map[uid.UID]bool
	warnedRecursion map[uid.UID]bool
}

// New creates an empty Stats, ready for UpdateProgramStats calls.
func New(log logsink.Logger) *Stats {
	return &Stats{
		NumOpsPerType:         make([]int64, numOpTypes()),
		ProgramLengths:        make(map[uid.UID]int64),
		ProgramUsages:         make(map[uid.UID]int64),
		SubmitterOf:           make(map[uid.UID]string),
		CallGraph:             make(map[uid.UID][]uid.UID),
		AllProgramIDs:         uid.NewSet(),
		LatestProgramID:       uid.NewSet(),
		SupportsIncEval:       uid.NewSet(),
		SupportsLogEval:       uid.NewSet(),
		Log:                   log,
		numConstants:          make(map[string]int64),
		numOperations:         make(map[string]int64),
		numOperationPositions: make(map[string]int64),
		blocksCollector:       NewBlockCollector(),
		visited:               make(map[uid.UID]bool),
		warnedRecursion:       make(map[uid.UID]bool),
	}
}

// numOpTypes returns the number of defined OpType values (Nop..Dbg are a
// contiguous iota range, so the last one's ordinal plus one is the
// count), matching Operation::Types.size() in the constructor upstream.
func numOpTypes() int { return int(program.Dbg) + 1 }

// UpdateProgramStats folds p's structure into the aggregate under id,
// attributed to submitter. Ported from Stats::updateProgramStats.
func (s *Stats) UpdateProgramStats(id uid.UID, p *program.Program, submitter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	numOps := p.NumOps(false)
	s.ProgramLengths[id] = int64(numOps)
	s.SubmitterOf[id] = submitter
	for numOps >= len(s.NumProgramsPerLength) {
		s.NumProgramsPerLength = append(s.NumProgramsPerLength, 0)
	}
	s.NumProgramsPerLength[numOps]++

	for pos, op := range p.Ops {
		md := program.Meta(op.Type)
		s.incOpType(op.Type)
		if op.Type != program.Seq && md.Arity == 2 && op.Source.IsConstant() {
			s.numConstants[op.Source.Value.String()]++
		}
		if op.Type != program.Nop {
			s.numOperations[operationKey(op)]++
			s.numOperationPositions[positionKey(pos, len(p.Ops), op)]++
		}
		if op.Type == program.Seq && op.Source.IsConstant() {
			called, err := uid.New('A', op.Source.Value.AsInt64())
			if err == nil {
				s.CallGraph[id] = append(s.CallGraph[id], called)
				s.ProgramUsages[called]++
			}
		}
	}

	ip := interp.New(nil)
	ie := inceval.New(ip)
	if ie.Init(p) {
		s.SupportsIncEval.Insert(id)
	} else {
		s.SupportsIncEval.Remove(id)
	}
	if analyzer.HasLogarithmicComplexity(p) {
		s.SupportsLogEval.Insert(id)
	} else {
		s.SupportsLogEval.Remove(id)
	}
	s.blocksCollector.Add(p)
}

func (s *Stats) incOpType(t program.OpType) {
	for int(t) >= len(s.NumOpsPerType) {
		s.NumOpsPerType = append(s.NumOpsPerType, 0)
	}
	s.NumOpsPerType[t]++
}

// operationKey canonicalizes an operation's type and operands (ignoring
// position and comment) for the num_operations frequency table.
func operationKey(op program.Operation) string {
	return fmt.Sprintf("%s|%s|%s", program.Meta(op.Type).Short, op.Target, op.Source)
}

// positionKey canonicalizes (pos, program length, operation) for the
// num_operation_positions frequency table.
func positionKey(pos, length int, op program.Operation) string {
	return fmt.Sprintf("%d|%d|%s", pos, length, operationKey(op))
}

// UpdateSequenceStats records that id was (re-)checked, matching
// Stats::updateSequenceStats.
func (s *Stats) UpdateSequenceStats(id uid.UID, programFound, formulaFound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NumSequences++
	if programFound {
		s.NumPrograms++
	}
	if formulaFound {
		s.NumFormulas++
	}
	if programFound {
		s.AllProgramIDs.Insert(id)
	} else {
		s.AllProgramIDs.Remove(id)
	}
}

// Finalize folds the blocks collector into Blocks. Matches
// Stats::finalize, minus the collectLatestProgramIds fallback (that
// requires the full program store, wired in by the caller instead of
// this package reaching back into it).
func (s *Stats) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.blocksCollector.Empty() {
		s.Blocks = s.blocksCollector.Finalize()
	}
}

// GetTransitiveLength sums the call graph closure's program lengths
// reachable from id, detecting cycles and logging once per offending id.
// Ported from Stats::getTransitiveLength.
func (s *Stats) GetTransitiveLength(id uid.UID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitiveLength(id)
}

func (s *Stats) transitiveLength(id uid.UID) int64 {
	if s.visited[id] {
		for k := range s.visited {
			delete(s.visited, k)
		}
		if !s.warnedRecursion[id] {
			s.warnedRecursion[id] = true
			if s.Log != nil {
				s.Log.Warn("recursion detected: %s", id)
			}
		}
		return -1
	}
	s.visited[id] = true
	length, ok := s.ProgramLengths[id]
	if !ok {
		if s.Log != nil {
			s.Log.Warn("invalid reference: %s", id)
		}
		delete(s.visited, id)
		return -1
	}
	for _, callee := range s.CallGraph[id] {
		length += s.transitiveLength(callee)
	}
	delete(s.visited, id)
	return length
}

// ConstantCounts returns a copy of the per-constant frequency table, keyed
// by the constant's canonical decimal string (number.Number.String()).
// Consumed by generator V1/V3 to bias which constants they emit.
func (s *Stats) ConstantCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.numConstants))
	for k, v := range s.numConstants {
		out[k] = v
	}
	return out
}

// OperationCounts returns a copy of the per-operation frequency table,
// keyed by operationKey. Use ParseOperationKey to recover the Operation a
// key represents.
func (s *Stats) OperationCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.numOperations))
	for k, v := range s.numOperations {
		out[k] = v
	}
	return out
}

// OperationPositionCounts returns a copy of the per-(position, length,
// operation) frequency table, keyed by positionKey. Use ParsePositionKey to
// recover the (pos, length, Operation) triple a key represents.
func (s *Stats) OperationPositionCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.numOperationPositions))
	for k, v := range s.numOperationPositions {
		out[k] = v
	}
	return out
}

// ParseOperationKey reconstructs the Operation an operationKey represents,
// the inverse of operationKey.
func ParseOperationKey(key string) (program.Operation, error) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return program.Operation{}, fmt.Errorf("stats: malformed operation key %q", key)
	}
	t, ok := program.ParseOpType(parts[0])
	if !ok {
		return program.Operation{}, fmt.Errorf("stats: unknown op mnemonic %q", parts[0])
	}
	target, err := parseOperandString(parts[1])
	if err != nil {
		return program.Operation{}, err
	}
	source, err := parseOperandString(parts[2])
	if err != nil {
		return program.Operation{}, err
	}
	return program.NewOperation(t, target, source), nil
}

// ParsePositionKey reconstructs the (pos, length, Operation) triple a
// positionKey represents.
func ParsePositionKey(key string) (pos, length int, op program.Operation, err error) {
	parts := strings.SplitN(key, "|", 5)
	if len(parts) != 5 {
		err = fmt.Errorf("stats: malformed position key %q", key)
		return
	}
	pos, e1 := strconv.Atoi(parts[0])
	length, e2 := strconv.Atoi(parts[1])
	if e1 != nil || e2 != nil {
		err = fmt.Errorf("stats: malformed position key %q", key)
		return
	}
	op, err = ParseOperationKey(parts[2] + "|" + parts[3] + "|" + parts[4])
	return
}

func parseOperandString(s string) (program.Operand, error) {
	if strings.HasPrefix(s, "$$") {
		n, err := strconv.ParseInt(s[2:], 10, 64)
		if err != nil {
			return program.Operand{}, err
		}
		return program.NewIndirect(n), nil
	}
	if strings.HasPrefix(s, "$") {
		n, err := strconv.ParseInt(s[1:], 10, 64)
		if err != nil {
			return program.Operand{}, err
		}
		return program.NewDirect(n), nil
	}
	v, err := number.Parse(s)
	if err != nil {
		return program.Operand{}, err
	}
	return program.NewConstant(v), nil
}

// NumUsages returns how many programs call id via seq.
func (s *Stats) NumUsages(id uid.UID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ProgramUsages[id]
}

// GetMainStatsFile returns the path whose mtime gauges staleness for
// the folder-lock-gated regeneration policy in spec section 4.12.
func GetMainStatsFile(dir string) string {
	return filepath.Join(dir, "constant_counts.csv")
}

// Save writes every corpus file under dir, creating it if needed.
// Ported from Stats::save.
func (s *Stats) Save(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := writeKeyedCounts(filepath.Join(dir, "constant_counts.csv"), s.numConstants); err != nil {
		return err
	}
	if err := s.saveProgramsCSV(dir); err != nil {
		return err
	}
	if err := s.saveLatestProgramsCSV(dir); err != nil {
		return err
	}
	if err := s.saveProgramLengthsCSV(dir); err != nil {
		return err
	}
	if err := s.saveOpTypeCountsCSV(dir); err != nil {
		return err
	}
	if err := writeKeyedCounts(filepath.Join(dir, "operation_counts.csv"), s.numOperations); err != nil {
		return err
	}
	if err := writeKeyedCounts(filepath.Join(dir, "operation_pos_counts.csv"), s.numOperationPositions); err != nil {
		return err
	}
	if err := s.saveSummaryCSV(dir); err != nil {
		return err
	}
	if err := s.saveCallGraphCSV(dir); err != nil {
		return err
	}
	if s.Steps.Total > 0 {
		if err := s.saveStepsCSV(dir); err != nil {
			return err
		}
	}
	if s.Blocks != nil {
		if err := writeFileAtomic(filepath.Join(dir, "blocks.asm"), []byte(s.Blocks.Save())); err != nil {
			return err
		}
	}
	if s.Log != nil {
		s.Log.Debug("saved program stats to %s", dir)
	}
	return nil
}

func writeKeyedCounts(path string, m map[string]int64) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f, err := createAtomic(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s,%d\n", k, m[k]); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveProgramsCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "programs.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, ProgramsHeader)
	ids := sortedIDs(s.AllProgramIDs)
	for _, id := range ids {
		inc := 0
		if s.SupportsIncEval.Exists(id) {
			inc = 1
		}
		logv := 0
		if s.SupportsLogEval.Exists(id) {
			logv = 1
		}
		fmt.Fprintf(w, "%s,%d,%d,%d,%d\n", id, s.ProgramLengths[id], s.ProgramUsages[id], inc, logv)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveLatestProgramsCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "latest_programs.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, id := range sortedIDs(s.LatestProgramID) {
		fmt.Fprintf(w, "%s\n", id)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveProgramLengthsCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "program_lengths.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i, c := range s.NumProgramsPerLength {
		if c > 0 {
			fmt.Fprintf(w, "%d,%d\n", i, c)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveOpTypeCountsCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "operation_type_counts.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i, c := range s.NumOpsPerType {
		if c > 0 {
			fmt.Fprintf(w, "%s,%d\n", program.Meta(program.OpType(i)).Short, c)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveSummaryCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "summary.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, SummaryHeader)
	fmt.Fprintf(w, "%d,%d,%d\n", s.NumSequences, s.NumPrograms, s.NumFormulas)
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveCallGraphCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "call_graph.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, CallGraphHeader)
	callers := make([]uid.UID, 0, len(s.CallGraph))
	for id := range s.CallGraph {
		callers = append(callers, id)
	}
	sort.Slice(callers, func(i, j int) bool { return callers[i].Less(callers[j]) })
	for _, caller := range callers {
		for _, callee := range s.CallGraph[caller] {
			fmt.Fprintf(w, "%s,%s\n", caller, callee)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func (s *Stats) saveStepsCSV(dir string) error {
	f, err := createAtomic(filepath.Join(dir, "steps.csv"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, StepsHeader)
	fmt.Fprintf(w, "%d,%d,%d,%d\n", s.Steps.Total, s.Steps.Min, s.Steps.Max, s.Steps.Runs)
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func sortedIDs(set *uid.Set) []uid.UID {
	var ids []uid.UID
	set.Each(func(id uid.UID) { ids = append(ids, id) })
	return ids
}

// Load reads every corpus file under dir into a fresh Stats. Ported from
// Stats::load; a missing optional file (offsets-like steps.csv) is not
// fatal, matching upstream's best-effort stream checks.
func Load(dir string, log logsink.Logger) (*Stats, error) {
	s := New(log)
	if log != nil {
		log.Debug("loading program stats from %s", dir)
	}

	if err := loadKeyedCounts(filepath.Join(dir, "constant_counts.csv"), s.numConstants); err != nil {
		return nil, err
	}
	if err := loadProgramLengthsCSV(filepath.Join(dir, "program_lengths.csv"), &s.NumProgramsPerLength); err != nil {
		return nil, err
	}
	if err := loadOpTypeCountsCSV(filepath.Join(dir, "operation_type_counts.csv"), s.NumOpsPerType); err != nil {
		return nil, err
	}
	if err := loadKeyedCounts(filepath.Join(dir, "operation_counts.csv"), s.numOperations); err != nil {
		return nil, err
	}
	if err := loadKeyedCounts(filepath.Join(dir, "operation_pos_counts.csv"), s.numOperationPositions); err != nil {
		return nil, err
	}
	if err := s.loadProgramsCSV(filepath.Join(dir, "programs.csv")); err != nil {
		return nil, err
	}
	if err := s.loadLatestProgramsCSV(filepath.Join(dir, "latest_programs.csv")); err != nil {
		return nil, err
	}
	if err := s.loadCallGraphCSV(filepath.Join(dir, "call_graph.csv")); err != nil {
		return nil, err
	}
	if err := s.loadSummaryCSV(filepath.Join(dir, "summary.csv")); err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(filepath.Join(dir, "blocks.asm")); err == nil {
		b, err := LoadBlocks(string(data))
		if err != nil {
			return nil, err
		}
		s.Blocks = b
	}

	if log != nil {
		log.Debug("finished loading program stats")
	}
	return s, nil
}

func loadKeyedCounts(path string, m map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			continue
		}
		v, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		m[line[:idx]] = v
	}
	return sc.Err()
}

func loadProgramLengthsCSV(path string, out *[]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), ",", 2)
		if len(parts) != 2 {
			continue
		}
		idx, err1 := strconv.Atoi(parts[0])
		v, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil || idx < 0 {
			continue
		}
		for idx >= len(*out) {
			*out = append(*out, 0)
		}
		(*out)[idx] = v
	}
	return sc.Err()
}

func loadOpTypeCountsCSV(path string, out []int64) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), ",", 2)
		if len(parts) != 2 {
			continue
		}
		t, ok := program.ParseOpType(parts[0])
		v, err := strconv.ParseInt(parts[1], 10, 64)
		if !ok || err != nil || int(t) >= len(out) {
			continue
		}
		out[t] = v
	}
	return sc.Err()
}

func (s *Stats) loadProgramsCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() || sc.Text() != ProgramsHeader {
		return fmt.Errorf("stats: unexpected header in %s", path)
	}
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) != 5 {
			continue
		}
		id, err := uid.Parse(parts[0])
		if err != nil {
			continue
		}
		length, _ := strconv.ParseInt(parts[1], 10, 64)
		usages, _ := strconv.ParseInt(parts[2], 10, 64)
		s.AllProgramIDs.Insert(id)
		s.ProgramLengths[id] = length
		s.ProgramUsages[id] = usages
		if parts[3] == "1" {
			s.SupportsIncEval.Insert(id)
		}
		if parts[4] == "1" {
			s.SupportsLogEval.Insert(id)
		}
	}
	return sc.Err()
}

func (s *Stats) loadLatestProgramsCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := uid.Parse(line)
		if err != nil {
			return fmt.Errorf("stats: unexpected latest program id %q: %w", line, err)
		}
		s.LatestProgramID.Insert(id)
	}
	return sc.Err()
}

func (s *Stats) loadCallGraphCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() || sc.Text() != CallGraphHeader {
		return fmt.Errorf("stats: unexpected header in %s", path)
	}
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), ",", 2)
		if len(parts) != 2 {
			continue
		}
		caller, err1 := uid.Parse(strings.TrimSpace(parts[0]))
		callee, err2 := uid.Parse(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		s.CallGraph[caller] = append(s.CallGraph[caller], callee)
	}
	return sc.Err()
}

func (s *Stats) loadSummaryCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() || sc.Text() != SummaryHeader {
		return fmt.Errorf("stats: unexpected header in %s", path)
	}
	if !sc.Scan() {
		return nil
	}
	parts := strings.Split(sc.Text(), ",")
	if len(parts) != 3 {
		return fmt.Errorf("stats: malformed summary line %q", sc.Text())
	}
	s.NumSequences, _ = strconv.ParseInt(parts[0], 10, 64)
	s.NumPrograms, _ = strconv.ParseInt(parts[1], 10, 64)
	s.NumFormulas, _ = strconv.ParseInt(parts[2], 10, 64)
	return sc.Err()
}
