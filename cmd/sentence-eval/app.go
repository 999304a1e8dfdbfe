package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/config"
	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/logging"
	"github.com/danielpatrickdp/sentence-eval/internal/orchestrator"
	"github.com/danielpatrickdp/sentence-eval/internal/state"
)

// #region history

// history bundles the store with the side tables that share its database.
type history struct {
	store    *state.Store
	attempts *orchestrator.AttemptLog
	audit    *logging.AuditLog
}

func openHistory(cfg *config.Config) (*history, error) {
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", cfg.DBPath, err)
	}
	attempts, err := orchestrator.NewAttemptLog(store.DB())
	if err != nil {
		store.Close()
		return nil, err
	}
	audit, err := logging.NewAuditLog(store.DB())
	if err != nil {
		store.Close()
		return nil, err
	}
	return &history{store: store, attempts: attempts, audit: audit}, nil
}

func (h *history) Close() error {
	return h.store.Close()
}

// #endregion history

// #region backend

// newAdapter builds the evaluator for the configured backend. The returned
// closer is never nil.
func newAdapter(ctx context.Context, cfg *config.Config) (codec.Adapter, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		a, err := codec.NewGeminiAdapter(ctx, cfg.APIKey, cfg.Profiles)
		if err != nil {
			return nil, nil, err
		}
		return a, nopCloser{}, nil
	case config.BackendRemote:
		a, err := codec.NewRemoteAdapter(cfg.RemoteAddr)
		if err != nil {
			return nil, nil, err
		}
		return a, a, nil
	case config.BackendOffline:
		return codec.NewHeuristicAdapter(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// selectCriteria resolves --criteria ids. With no ids the offline backend
// gets the criteria it can judge and every other backend gets the whole
// catalog.
func selectCriteria(reg *criteria.Registry, backend string, ids []string) ([]eval.Criterion, error) {
	if len(ids) > 0 {
		return reg.Select(ids...)
	}
	all := reg.List()
	if backend != config.BackendOffline {
		return all, nil
	}
	h := codec.NewHeuristicAdapter()
	var out []eval.Criterion
	for _, c := range all {
		if h.Supports(c.ID) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no criteria supported by the offline backend")
	}
	return out, nil
}

// #endregion backend

// #region text

// shortText trims s to n runes for table output.
func shortText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// #endregion text
