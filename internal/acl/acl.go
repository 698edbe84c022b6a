// Package acl implements the access-control filter: a small table of
// (client, access, topic) rules loaded from a flat file, checked by exact
// string match. There is exactly one decision path — an unmatched
// (client, topic, direction) triple is always denied.
package acl

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// MaxRules bounds the ACL table size.
const MaxRules = 256

type rule struct {
	client string
	pub    bool
	topic  string
}

// Table is a loaded ACL rule set.
type Table struct {
	rules []rule
	// OnCapacityExceeded is invoked once per rule dropped past MaxRules.
	OnCapacityExceeded func(line string)
}

// New returns an empty table that denies everything.
func New() *Table {
	return &Table{}
}

// Load reads a `client,access,topic` file, access ∈ {pub,sub}. Malformed
// lines and lines past MaxRules are skipped (the latter invoking
// OnCapacityExceeded).
func Load(path string) (*Table, error) {
	return New().LoadFile(path)
}

// LoadFile populates t from a `client,access,topic` file, replacing any
// previously loaded rules. OnCapacityExceeded, if set on t beforehand, is
// invoked once per rule dropped past MaxRules.
func (t *Table) LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open acl file %s: %w", path, err)
	}
	defer f.Close()

	t.rules = nil
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		client := strings.TrimSpace(fields[0])
		access := strings.TrimSpace(fields[1])
		topic := strings.TrimSpace(fields[2])

		var pub bool
		switch access {
		case "pub":
			pub = true
		case "sub":
			pub = false
		default:
			continue
		}

		if len(t.rules) >= MaxRules {
			if t.OnCapacityExceeded != nil {
				t.OnCapacityExceeded(line)
			}
			continue
		}
		t.rules = append(t.rules, rule{client: client, pub: pub, topic: topic})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read acl file %s: %w", path, err)
	}
	return t, nil
}

// Permit reports whether client may publish (isPublish) or subscribe
// (!isPublish) to topic, by exact match against the loaded rules. No rule
// matches -> deny.
func (t *Table) Permit(client, topic string, isPublish bool) bool {
	if t == nil {
		return false
	}
	for _, r := range t.rules {
		if r.client == client && r.topic == topic && r.pub == isPublish {
			return true
		}
	}
	return false
}

// Len reports how many rules are loaded.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}
