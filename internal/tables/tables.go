// Package tables holds the immutable monster reference data: display names,
// the crowdsource subset, and the mapping from monster id to the backend's
// remote id.
package tables

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bpsr-logs/livemeter/internal/model"
)

// Reference file names inside the tables directory.
const (
	MonsterNameFile            = "MonsterName.json"
	MonsterNameCrowdsourceFile = "MonsterNameCrowdsource.json"
	MonsterUIDCrowdsourceFile  = "MonsterUidCrowdsource.json"
)

type remoteEntry struct {
	monsterID int32
	name      string
}

// Tables is safe for concurrent use; it is never mutated after New.
type Tables struct {
	names       map[int32]string
	crowdsource map[int32]string
	remoteIDs   map[int32]string
	byRemote    map[string]remoteEntry
}

// New builds the lookup tables. The maps are copied.
func New(monsterNames, crowdsourceNames, remoteIDs map[int32]string) *Tables {
	t := &Tables{
		names:       maps.Clone(monsterNames),
		crowdsource: maps.Clone(crowdsourceNames),
		remoteIDs:   maps.Clone(remoteIDs),
		byRemote:    make(map[string]remoteEntry, len(remoteIDs)),
	}

	ids := make([]int32, 0, len(t.remoteIDs))
	for id := range t.remoteIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		remote := t.remoteIDs[id]
		name := t.lookupName(id)
		cur, ok := t.byRemote[remote]
		if !ok || preferName(cur, id, name) {
			t.byRemote[remote] = remoteEntry{monsterID: id, name: name}
		}
	}
	return t
}

// preferName decides whether (id, name) replaces cur for the same remote id.
// Names without a '-' suffix win; otherwise the lower monster id wins.
func preferName(cur remoteEntry, id int32, name string) bool {
	curSuffix := strings.Contains(cur.name, "-")
	newSuffix := strings.Contains(name, "-")
	if curSuffix != newSuffix {
		return curSuffix
	}
	return id < cur.monsterID
}

func (t *Tables) lookupName(id int32) string {
	if name, ok := t.crowdsource[id]; ok {
		return name
	}
	if name, ok := t.names[id]; ok {
		return name
	}
	return fallbackName(id)
}

func fallbackName(id int32) string {
	return fmt.Sprintf("Monster %d", id)
}

// IsCrowdsourced reports whether the monster's HP is shared with the backend.
func (t *Tables) IsCrowdsourced(monsterID int32) bool {
	_, ok := t.crowdsource[monsterID]
	return ok
}

// MonsterName returns the general display name of a monster.
func (t *Tables) MonsterName(monsterID int32) (string, bool) {
	name, ok := t.names[monsterID]
	return name, ok
}

// CrowdsourceName returns the crowdsource-specific name of a monster.
func (t *Tables) CrowdsourceName(monsterID int32) (string, bool) {
	name, ok := t.crowdsource[monsterID]
	return name, ok
}

// RemoteID returns the backend identifier of a monster.
func (t *Tables) RemoteID(monsterID int32) (string, bool) {
	id, ok := t.remoteIDs[monsterID]
	return id, ok
}

// DisplayName resolves the name shown for a monster: the crowdsource table,
// then the general table, then the entity's own name, then "Monster {id}".
func (t *Tables) DisplayName(monsterID int32, entityName *string) string {
	if name, ok := t.crowdsource[monsterID]; ok {
		return name
	}
	if name, ok := t.names[monsterID]; ok {
		return name
	}
	if entityName != nil {
		return *entityName
	}
	return fallbackName(monsterID)
}

// ResolveRemote maps a backend identifier to the preferred monster id and name.
func (t *Tables) ResolveRemote(remoteID string) (int32, string, bool) {
	e, ok := t.byRemote[remoteID]
	return e.monsterID, e.name, ok
}

// Choices lists every selectable crowdsource monster sorted by name,
// ignoring case.
func (t *Tables) Choices() []model.CrowdsourcedMonsterOption {
	out := make([]model.CrowdsourcedMonsterOption, 0, len(t.byRemote))
	for remote, e := range t.byRemote {
		out = append(out, model.CrowdsourcedMonsterOption{Name: e.name, ID: e.monsterID, RemoteID: remote})
	}
	slices.SortFunc(out, func(a, b model.CrowdsourcedMonsterOption) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.RemoteID, b.RemoteID)
	})
	return out
}

// Load reads the three reference files from dir. A missing file is an error.
func Load(dir string) (*Tables, error) {
	names, err := readIDMap(filepath.Join(dir, MonsterNameFile))
	if err != nil {
		return nil, err
	}
	crowdsource, err := readIDMap(filepath.Join(dir, MonsterNameCrowdsourceFile))
	if err != nil {
		return nil, err
	}
	remoteIDs, err := readIDMap(filepath.Join(dir, MonsterUIDCrowdsourceFile))
	if err != nil {
		return nil, err
	}
	return New(names, crowdsource, remoteIDs), nil
}

// readIDMap decodes a JSON object keyed by decimal monster id. Keys that are
// not 32-bit integers are skipped.
func readIDMap(path string) (map[int32]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	out := make(map[int32]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			continue
		}
		out[int32(id)] = v
	}
	return out, nil
}
