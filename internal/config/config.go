// Package config is the runtime configuration authority: it holds the
// single source of truth, validates patches against a whitelist of
// editable fields, and deep-merges proposed updates.
//
// The config tree is represented as a generic Doc (map[string]interface{})
// rather than a single monolithic struct: nested YAML/JSON-shaped
// sections (backtest, decision, exits, features, meta) are each
// validated independently.
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"

	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// Doc is a canonical nested configuration tree.
type Doc map[string]interface{}

// Whitelist lists the dotted-path prefixes a patch is allowed to touch.
// A patch key is valid if it or one of its ancestors appears here.
var Whitelist = []string{
	"backtest.capital",
	"backtest.commission",
	"backtest.slippage",
	"decision.r_default",
	"decision.min_edge",
	"decision.hysteresis_steps",
	"decision.cooldown_bars",
	"decision.max_position_size",
	"decision.risk_map",
	"decision.conf_threshold",
	"decision.zone_threshold",
	"exits.fib_threshold_atr",
	"exits.trail_atr_multiplier",
	"exits.policy",
	"exits.hybrid_atr_delta_trigger",
	"features.atr_period",
	"features.swing_lookback",
	"meta.skip_champion_merge",
}

// AuditEntry records one proposed update for drift auditing.
type AuditEntry struct {
	Timestamp          time.Time `json:"timestamp"`
	Patch              Doc       `json:"patch"`
	FingerprintBefore  string    `json:"fingerprint_before"`
	FingerprintAfter   string    `json:"fingerprint_after"`
}

// Authority owns the runtime SSOT file: single writer, many readers,
// atomic replace.
type Authority struct {
	mu      sync.Mutex
	path    string
	current Doc
	version int
	audit   []AuditEntry
}

// Load reads the runtime config file, enforcing that backtest.commission
// is present: commission is mandatory and is never silently defaulted.
func Load(path string) (*Authority, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.FatalConfig("failed to read runtime config", err)
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.FatalConfig("failed to parse runtime config JSON", err)
	}
	a := &Authority{path: path, current: doc, version: 1}
	if err := a.requireCommission(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Authority) requireCommission() error {
	backtest, ok := a.current["backtest"].(map[string]interface{})
	if !ok {
		return cerrors.FatalConfig("backtest section missing from runtime config", nil)
	}
	if _, ok := backtest["commission"]; !ok {
		return cerrors.FatalConfig("backtest.commission is mandatory and has no default", nil)
	}
	return nil
}

// Get returns the current config, its fingerprint, and version.
func (a *Authority) Get() (Doc, string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneDoc(a.current), Fingerprint(a.current), a.version
}

// Validate checks patch against the whitelist, returning a list of
// human-readable errors (empty slice means ok).
func Validate(patch Doc) []string {
	var errs []string
	walkDottedKeys(patch, "", func(path string) {
		if !isWhitelisted(path) {
			errs = append(errs, fmt.Sprintf("field %q is not in the editable whitelist", path))
		}
	})
	return errs
}

// isWhitelisted reports whether path is itself a whitelisted leaf or a
// descendant of one. It deliberately does not match an ancestor of a
// whitelisted leaf: a patch to "meta" must not be accepted just because
// "meta.skip_champion_merge" is whitelisted, since that would let a
// scalar patch silently replace the whole subtree.
func isWhitelisted(path string) bool {
	for _, w := range Whitelist {
		if path == w || strings.HasPrefix(path, w+".") {
			return true
		}
	}
	return false
}

func walkDottedKeys(doc Doc, prefix string, visit func(path string)) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := doc[k].(map[string]interface{}); ok {
			walkDottedKeys(nested, path, visit)
		} else {
			visit(path)
		}
	}
}

// ProposeUpdate unwraps a "cfg" or "parameters" wrapper key if present,
// validates the patch, deep-merges it into the current config via
// mergo, writes the new version atomically (temp-file + rename), and
// appends an audit entry.
func (a *Authority) ProposeUpdate(patch Doc) (string, error) {
	unwrapped := unwrapPatch(patch)

	if errs := Validate(unwrapped); len(errs) > 0 {
		return "", cerrors.FatalConfig(fmt.Sprintf("patch rejected: %s", strings.Join(errs, "; ")), nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	before := Fingerprint(a.current)
	merged := cloneDoc(a.current)
	if err := mergo.Merge(&merged, unwrapped, mergo.WithOverride); err != nil {
		return "", cerrors.FatalConfig("deep merge failed", err)
	}

	if err := atomicWriteJSON(a.path, merged); err != nil {
		return "", err
	}

	after := Fingerprint(merged)
	a.current = merged
	a.version++
	a.audit = append(a.audit, AuditEntry{
		Timestamp:         time.Now().UTC(),
		Patch:             unwrapped,
		FingerprintBefore: before,
		FingerprintAfter:  after,
	})
	return after, nil
}

func unwrapPatch(patch Doc) Doc {
	if cfg, ok := patch["cfg"].(map[string]interface{}); ok {
		return Doc(cfg)
	}
	if params, ok := patch["parameters"].(map[string]interface{}); ok {
		return Doc(params)
	}
	return patch
}

// AuditLog returns the recorded update history.
func (a *Authority) AuditLog() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.audit))
	copy(out, a.audit)
	return out
}

// Fingerprint computes a canonical-JSON + SHA-256 fingerprint truncated
// to 16 hex characters. encoding/json sorts map keys lexicographically,
// giving a stable byte representation for a given logical document.
func Fingerprint(doc Doc) string {
	data, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16]
}

func cloneDoc(doc Doc) Doc {
	data, _ := json.Marshal(doc)
	var out Doc
	_ = json.Unmarshal(data, &out)
	return out
}

func atomicWriteJSON(path string, doc Doc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cerrors.FatalConfig("failed to marshal runtime config", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return cerrors.Transient("failed to create temp config file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cerrors.Transient("failed to write temp config file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cerrors.Transient("failed to close temp config file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cerrors.Transient("failed to atomically replace runtime config", err)
	}
	return nil
}
