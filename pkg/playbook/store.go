package playbook

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shelfsense/shelfsense/pkg/logging"
)

// Store is the file-backed, append-only playbook. Reads are cheap and may be
// concurrent; writes are serialized per section so the dedup invariant holds.
// It uses a mutex for in-process concurrency and file locking for
// cross-process safety.
type Store struct {
	path string

	mu        sync.RWMutex // protects bullets and nextSeq
	sectionMu map[Section]*sync.Mutex
	bullets   map[Section][]Bullet
	nextSeq   map[Section]int
}

var bulletRegex = regexp.MustCompile(`^\[([^\]]+)\]\s+uses=(\d+)\s+created=(\S+)\s+::\s+(.+)$`)

// Open loads a playbook store from the given path, creating the in-memory
// state from the persisted file if it exists.
func Open(path string) (*Store, error) {
	s := &Store{
		path:      path,
		sectionMu: make(map[Section]*sync.Mutex, len(Sections())),
		bullets:   make(map[Section][]Bullet, len(Sections())),
		nextSeq:   make(map[Section]int, len(Sections())),
	}
	for _, section := range Sections() {
		s.sectionMu[section] = &sync.Mutex{}
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add appends a new bullet unless it is product-specific or a duplicate of an
// existing bullet in the same section under normalized-text comparison.
// Returns (bullet, true) on append, (nil, false) on no-op. Policy violations
// are logged and dropped, not errors.
func (s *Store) Add(ctx context.Context, section Section, text string, bannedTokens ...string) (*Bullet, bool, error) {
	logger := logging.GetLogger()

	if !ValidSection(section) {
		return nil, false, fmt.Errorf("unknown playbook section: %s", section)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, nil
	}

	if err := CheckGeneralizable(text, bannedTokens); err != nil {
		logger.Warn(ctx, "dropping non-generalizable bullet for section %s: %v", section, err)
		return nil, false, nil
	}

	// Serialize writes to this section
	s.sectionMu[section].Lock()
	defer s.sectionMu[section].Unlock()

	normalized := Normalize(text)

	s.mu.RLock()
	for _, existing := range s.bullets[section] {
		if Normalize(existing.Text) == normalized {
			s.mu.RUnlock()
			logger.Debug(ctx, "duplicate bullet in section %s, no-op", section)
			return nil, false, nil
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	s.nextSeq[section]++
	bullet := Bullet{
		ID:        fmt.Sprintf("%s-%05d", section, s.nextSeq[section]),
		Section:   section,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	s.bullets[section] = append(s.bullets[section], bullet)
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, false, err
	}
	return &bullet, true, nil
}

// Bullets returns the bullets of one section in insertion order, or every
// bullet in canonical section order when section is empty.
func (s *Store) Bullets(section Section) []Bullet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if section != "" {
		out := make([]Bullet, len(s.bullets[section]))
		copy(out, s.bullets[section])
		return out
	}

	var out []Bullet
	for _, sec := range Sections() {
		out = append(out, s.bullets[sec]...)
	}
	return out
}

// RecordUsage increments the usage counter of the referenced bullets.
func (s *Store) RecordUsage(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	s.mu.Lock()
	for section := range s.bullets {
		for i := range s.bullets[section] {
			if wanted[s.bullets[section][i].ID] {
				s.bullets[section][i].UsageCount++
			}
		}
	}
	s.mu.Unlock()

	return s.save()
}

// Snapshot returns an immutable view of the current playbook, safe to share
// across concurrent generator invocations.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{bullets: make(map[Section][]Bullet, len(s.bullets))}
	for section, list := range s.bullets {
		copied := make([]Bullet, len(list))
		copy(copied, list)
		snap.bullets[section] = copied
	}
	return snap
}

// load reads the persisted playbook file into memory.
func (s *Store) load() error {
	lockFile, err := s.acquireFileLock(lockShared)
	if err != nil {
		return err
	}
	defer s.releaseFileLock(lockFile)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var current Section
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "## ") {
			current = Section(strings.ToLower(strings.TrimPrefix(line, "## ")))
			continue
		}

		matches := bulletRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		uses, _ := strconv.Atoi(matches[2])
		created, _ := time.Parse(time.RFC3339, matches[3])

		section := current
		if section == "" {
			section = sectionFromID(matches[1])
		}
		if !ValidSection(section) {
			continue
		}

		s.bullets[section] = append(s.bullets[section], Bullet{
			ID:         matches[1],
			Section:    section,
			Text:       matches[4],
			CreatedAt:  created,
			UsageCount: uses,
		})

		if seq := seqFromID(matches[1]); seq > s.nextSeq[section] {
			s.nextSeq[section] = seq
		}
	}

	return scanner.Err()
}

// save writes the whole playbook atomically under an exclusive file lock.
func (s *Store) save() error {
	lockFile, err := s.acquireFileLock(lockExclusive)
	if err != nil {
		return err
	}
	defer s.releaseFileLock(lockFile)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	s.mu.RLock()
	var sb strings.Builder
	first := true
	for _, section := range Sections() {
		list := s.bullets[section]
		if len(list) == 0 {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		sb.WriteString(fmt.Sprintf("## %s\n", strings.ToUpper(string(section))))
		for _, b := range list {
			sb.WriteString(b.String() + "\n")
		}
	}
	s.mu.RUnlock()

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(sb.String()), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func sectionFromID(id string) Section {
	if i := strings.LastIndex(id, "-"); i > 0 {
		return Section(id[:i])
	}
	return ""
}

func seqFromID(id string) int {
	if i := strings.LastIndex(id, "-"); i != -1 && i < len(id)-1 {
		if n, err := strconv.Atoi(id[i+1:]); err == nil {
			return n
		}
	}
	return 0
}
