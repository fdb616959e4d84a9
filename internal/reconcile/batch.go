package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// Check reconciles one artifact of kind and records the verdict.
func (e *Engine) Check(ctx context.Context, kind models.Kind, key string) (models.Verdict, error) {
	started := time.Now()
	var (
		v   models.Verdict
		err error
	)
	switch kind {
	case models.KindPlugin:
		v, err = e.CheckPlugin(ctx, key)
	case models.KindPatch:
		v, err = e.CheckPatch(ctx, key)
	default:
		return models.Verdict{}, fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return models.Verdict{}, err
	}
	e.record(v, started)
	return v, nil
}

// record saves v as the artifact's last check. A failing cache write is
// logged and does not change the verdict.
func (e *Engine) record(v models.Verdict, started time.Time) {
	e.metrics.ObserveVerdict(v, started)
	if v.State == models.StateCheckFailed {
		log.Warn().Str("kind", string(v.Kind)).Str("key", v.Key).Str("error", v.Error).Msg("Update check failed")
	}
	if err := e.store.SaveCheck(v); err != nil {
		log.Warn().Err(err).Str("key", v.Key).Msg("Failed to cache update check")
	}
}

// ProgressFunc is told about each finished artifact of a batch.
type ProgressFunc func(done, total int, v models.Verdict)

// CheckAll reconciles every registered artifact of kind in key order.
// One artifact failing never stops the others. If ctx is cancelled the
// batch stops before the next remote call and returns what it has, with
// Cancelled set.
func (e *Engine) CheckAll(ctx context.Context, kind models.Kind, progress ProgressFunc) (models.BatchResult, error) {
	result := models.BatchResult{Kind: kind, Verdicts: []models.Verdict{}}

	type item struct {
		key    string
		plugin models.InstallRecord
		patch  models.PatchInstallRecord
	}
	var items []item
	switch kind {
	case models.KindPlugin:
		recs, err := e.registry.ListPlugins()
		if err != nil {
			return result, err
		}
		for k, r := range recs {
			items = append(items, item{key: k, plugin: r})
		}
	case models.KindPatch:
		recs, err := e.registry.ListPatches()
		if err != nil {
			return result, err
		}
		for k, r := range recs {
			items = append(items, item{key: k, patch: r})
		}
	default:
		return result, fmt.Errorf("unknown kind %q", kind)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	cache := make(listingCache)
	for i, it := range items {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		started := time.Now()
		var v models.Verdict
		if kind == models.KindPlugin {
			v = e.checkPlugin(ctx, it.key, it.plugin)
		} else {
			v = e.checkPatch(ctx, it.key, it.patch, cache)
		}

		// A check cut short by cancellation says nothing about the artifact.
		if ctx.Err() != nil && v.State == models.StateCheckFailed {
			result.Cancelled = true
			break
		}

		e.record(v, started)
		result.Verdicts = append(result.Verdicts, v)
		result.Summary.Add(v)
		if progress != nil {
			progress(i+1, len(items), v)
		}
	}

	log.Info().
		Str("kind", string(kind)).
		Int("checked", result.Summary.Total).
		Int("needs_update", result.Summary.NeedsUpdate).
		Int("failed", result.Summary.CheckFailed).
		Bool("cancelled", result.Cancelled).
		Msg("Update check finished")
	return result, nil
}
