package safety

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/qoredb/core/model"
)

// Policy is the two-knob safety policy every production session is
// gated by. The zero value enforces neither rule; DefaultPolicy is the
// conservative default: confirmation required, dangerous statements
// blocked.
type Policy struct {
	ProdRequireConfirmation bool `json:"prod_require_confirmation"`
	ProdBlockDangerousSQL   bool `json:"prod_block_dangerous_sql"`
}

// DefaultPolicy is what a fresh install starts with.
func DefaultPolicy() Policy {
	return Policy{ProdRequireConfirmation: true, ProdBlockDangerousSQL: true}
}

// Store loads, persists, and caches the effective policy: persisted
// file contents composed with environment-variable overrides. Writes
// go through persist-then-reload-then-replace so the in-memory copy
// never drifts from the file+environment composition.
type Store struct {
	path string

	mu     sync.RWMutex
	policy Policy
}

// NewStore loads the policy from path (using DefaultPolicy if the file
// is absent, without creating it) and applies environment overrides.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	p, err := loadFromDisk(s.path)
	if err != nil {
		return err
	}
	p = applyEnvOverrides(p)
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}

func loadFromDisk(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return Policy{}, model.Wrap(model.KindInternal, "failed to read safety policy", err)
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, model.Wrap(model.KindInternal, "failed to parse safety policy", err)
	}
	return p, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func applyEnvOverrides(p Policy) Policy {
	if v, ok := os.LookupEnv("QOREDB_PROD_REQUIRE_CONFIRMATION"); ok {
		p.ProdRequireConfirmation = isTruthy(v)
	}
	if v, ok := os.LookupEnv("QOREDB_PROD_BLOCK_DANGEROUS"); ok {
		p.ProdBlockDangerousSQL = isTruthy(v)
	}
	return p
}

// Get returns the current effective policy.
func (s *Store) Get() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Set persists newPolicy to disk, reloads (so environment overrides are
// reapplied on top of it), and replaces the in-memory copy.
func (s *Store) Set(newPolicy Policy) error {
	data, err := json.MarshalIndent(newPolicy, "", "  ")
	if err != nil {
		return model.Wrap(model.KindInternal, "failed to encode safety policy", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return model.Wrap(model.KindInternal, "failed to write safety policy", err)
	}
	return s.reload()
}

// Decision is the gate's verdict on one execute_query call.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func block(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Gate applies the policy decision tree to one statement. sessionReadOnly
// and sessionProduction are the session's config flags; acknowledged is
// the caller-supplied acknowledged_dangerous flag.
func Gate(c Classification, sessionReadOnly, sessionProduction, acknowledged bool, p Policy) Decision {
	if c.ParseFailed {
		switch {
		case sessionReadOnly:
			return block("parser-could-not-classify")
		case sessionProduction && p.ProdBlockDangerousSQL:
			return block("SQL parse error: statement could not be classified and dangerous statements are blocked in production")
		case sessionProduction && p.ProdRequireConfirmation && !acknowledged:
			return block("SQL parse error: confirmation required for unclassifiable statements in production")
		default:
			return allow()
		}
	}

	if sessionReadOnly && c.IsMutation {
		return block("Operation blocked: read-only mode")
	}
	if sessionProduction && c.IsDangerous && p.ProdBlockDangerousSQL {
		return block("Operation blocked: dangerous statement blocked in production")
	}
	if sessionProduction && c.IsDangerous && p.ProdRequireConfirmation && !acknowledged {
		return block("confirmation required: dangerous statement in production")
	}
	return allow()
}
