package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vipyrsec/dragonfly-worker/internal/ruleengine"
	"github.com/vipyrsec/dragonfly-worker/internal/rulestore"
)

// RuleFetcher is satisfied by *apiclient.Client.
type RuleFetcher interface {
	GetRules(ctx context.Context) (hash string, rules map[string]string, err error)
}

// RuleSyncer keeps a rulestore.Store in sync with the mainframe's current
// rule bundle, compiling and swapping in a new ruleengine.Rules only when
// the hash actually changed. Grounded on client.rs's fetch_rules +
// RulesState::try_from pairing, split so the worker can call it both at
// startup and reactively per job (spec §4.4).
type RuleSyncer struct {
	api   RuleFetcher
	store *rulestore.Store

	onReload      func()
	onReloadError func()
}

// NewRuleSyncer constructs a syncer over api and store.
func NewRuleSyncer(api RuleFetcher, store *rulestore.Store) *RuleSyncer {
	return &RuleSyncer{api: api, store: store}
}

// OnReload installs metrics hooks for successful/failed reloads.
func (s *RuleSyncer) OnReload(success, failure func()) {
	s.onReload = success
	s.onReloadError = failure
}

// Sync fetches the current rule bundle and, if its hash differs from the
// store's, compiles and installs it. A fetch or compile failure is
// reported but never fatal: the caller keeps scanning against whatever
// ruleset is already loaded (spec §4.1 step 2a).
func (s *RuleSyncer) Sync(ctx context.Context) error {
	hash, sources, err := s.api.GetRules(ctx)
	if err != nil {
		s.reportError()
		return fmt.Errorf("fetch rules: %w", err)
	}

	if hash == s.store.Hash() {
		return nil
	}

	compiled, err := ruleengine.Compile(sources)
	if err != nil {
		s.reportError()
		return fmt.Errorf("compile rules for hash %s: %w", hash, err)
	}

	s.store.Replace(compiled, hash)
	if s.onReload != nil {
		s.onReload()
	}
	slog.Info("rule store reloaded", "hash", hash, "rule_count", len(sources))
	return nil
}

func (s *RuleSyncer) reportError() {
	if s.onReloadError != nil {
		s.onReloadError()
	}
}
