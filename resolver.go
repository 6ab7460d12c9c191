// resolver.go: Placeholder resolution engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRequestTimeout bounds a single plugin request.
const DefaultRequestTimeout = 5 * time.Second

// PluginLookup resolves an identifier to an enabled plugin.
type PluginLookup interface {
	Get(identifier string) (Plugin, bool)
}

// ResolverConfig configures the resolution engine.
type ResolverConfig struct {
	// RequestTimeout bounds each plugin call. Zero uses DefaultRequestTimeout.
	RequestTimeout time.Duration

	// CircuitBreaker is applied per plugin. Nil uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Cache holds last resolved values. Nil creates an in-memory cache.
	Cache *PlaceholderCache

	Clock   Clock
	Logger  Logger
	Metrics MetricsCollector
}

// Resolver rewrites templates by substituting placeholder tokens with
// plugin values.
//
// A refresh pass tokenizes every template, decides per token whether to
// query the owning plugin or reuse the cached value, queries each plugin in
// its own goroutine with a per-call deadline, joins all results and only
// then rewrites the templates. A plugin is never called concurrently with
// itself: while a timed-out call is still running the plugin is reported as
// busy and its tokens fall back to cached values.
type Resolver struct {
	plugins  PluginLookup
	config   ResolverConfig
	cache    *PlaceholderCache
	cooldown *CooldownClock
	clock    Clock
	logger   Logger
	metrics  MetricsCollector
	tracker  *RequestTracker

	passMu sync.Mutex

	stateMu  sync.Mutex
	breakers map[string]*CircuitBreaker
	busy     map[string]*atomic.Bool
}

// NewResolver creates a resolver over the given plugins.
func NewResolver(plugins PluginLookup, config ResolverConfig) *Resolver {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.CircuitBreaker == nil {
		defaults := DefaultCircuitBreakerConfig()
		config.CircuitBreaker = &defaults
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}
	logger := NewLogger(config.Logger)
	if config.Metrics == nil {
		config.Metrics = noopMetrics{}
	}
	cache := config.Cache
	if cache == nil {
		cache = NewPlaceholderCache(nil, logger)
	}

	return &Resolver{
		plugins:  plugins,
		config:   config,
		cache:    cache,
		cooldown: NewCooldownClock(),
		clock:    config.Clock,
		logger:   logger,
		metrics:  config.Metrics,
		tracker:  NewRequestTracker(config.Metrics),
		breakers: make(map[string]*CircuitBreaker),
		busy:     make(map[string]*atomic.Bool),
	}
}

// Cache returns the resolver's placeholder cache.
func (r *Resolver) Cache() *PlaceholderCache { return r.cache }

// Cooldown returns the resolver's cooldown clock.
func (r *Resolver) Cooldown() *CooldownClock { return r.cooldown }

// Tracker returns the tracker of plugin calls still in flight.
func (r *Resolver) Tracker() *RequestTracker { return r.tracker }

// Resolve runs a refresh pass over a single template.
func (r *Resolver) Resolve(ctx context.Context, template string, bypass bool) string {
	return r.ResolveAll(ctx, []string{template}, bypass)[0]
}

// pendingRequest is one distinct token text that must be queried.
type pendingRequest struct {
	token Token
	value string
	ok    bool
}

// ResolveAll runs one refresh pass over templates and returns the rewritten
// texts in the same order. With bypass set every referenced plugin is
// queried regardless of its cooldown.
func (r *Resolver) ResolveAll(ctx context.Context, templates []string, bypass bool) []string {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	now := r.clock.Now()
	r.metrics.IncrementCounter(MetricRefreshPasses, nil, 1)

	tokenized := make([][]Token, len(templates))
	seen := make(map[string]struct{})
	var ordered []Token
	for i, tmpl := range templates {
		tokenized[i] = Tokenize(tmpl)
		for _, tok := range tokenized[i] {
			if !tok.IsRequest {
				continue
			}
			if _, dup := seen[tok.Text]; dup {
				continue
			}
			seen[tok.Text] = struct{}{}
			ordered = append(ordered, tok)
		}
	}

	values := make(map[string]string)
	queries := make(map[string][]*pendingRequest)
	plugins := make(map[string]Plugin)
	var queryOrder []string

	for _, tok := range ordered {
		plugin, ok := r.plugins.Get(tok.PluginID)
		if !ok {
			r.metrics.IncrementCounter(MetricUnresolved, map[string]string{"reason": "unknown_plugin"}, 1)
			continue
		}

		if bypass || r.cooldown.Eligible(tok.PluginID, now) {
			if _, planned := queries[tok.PluginID]; !planned {
				queryOrder = append(queryOrder, tok.PluginID)
				plugins[tok.PluginID] = plugin
			}
			queries[tok.PluginID] = append(queries[tok.PluginID], &pendingRequest{token: tok})
			continue
		}

		if entry, cached := r.cache.Get(tok.Text); cached {
			values[tok.Text] = entry.Value
			r.metrics.IncrementCounter(MetricCacheReuse, map[string]string{"plugin": tok.PluginID}, 1)
		}
	}

	var wg sync.WaitGroup
	for _, id := range queryOrder {
		wg.Add(1)
		go func(id string, plugin Plugin, pending []*pendingRequest) {
			defer wg.Done()
			defer withStackRecover(r.logger, "resolver")()
			r.queryPlugin(ctx, id, plugin, pending, bypass)
		}(id, plugins[id], queries[id])
	}
	wg.Wait()

	produced := make(map[string]bool)
	for _, id := range queryOrder {
		for _, req := range queries[id] {
			text := req.token.Text
			if req.ok {
				values[text] = req.value
				r.cache.Put(text, req.value, id, now)
				produced[id] = true
				continue
			}
			if entry, cached := r.cache.Get(text); cached {
				values[text] = entry.Value
				r.metrics.IncrementCounter(MetricStaleFallback, map[string]string{"plugin": id}, 1)
				r.logger.Warn("Placeholder was not resolved, using cached value",
					"token", text,
					"plugin", id)
				continue
			}
			r.metrics.IncrementCounter(MetricUnresolved, map[string]string{"reason": "no_value"}, 1)
		}
	}

	for _, id := range sortedKeys(produced) {
		r.cooldown.Advance(id, now, refreshInterval(plugins[id]))
	}

	out := make([]string, len(templates))
	for i, tmpl := range templates {
		out[i] = Render(tmpl, tokenized[i], values)
	}
	return out
}

// queryPlugin runs every pending request of one plugin for the current pass
// and feeds the breaker a single outcome: success when any token produced a
// value, failure when none did and at least one call failed. A forced pass
// skips the breaker check so the plugin is always reached.
func (r *Resolver) queryPlugin(ctx context.Context, id string, plugin Plugin, pending []*pendingRequest, bypass bool) {
	breaker := r.breaker(id)
	if !bypass && !breaker.AllowRequest() {
		for _, req := range pending {
			r.recordOutcome(id, OutcomeOpen)
			r.logger.Debug("Skipping plugin request", "token", req.token.Text, "error", NewCircuitOpenError(id))
		}
		return
	}

	produced, failed := false, false
	for _, req := range pending {
		var outcome string
		req.value, req.ok, outcome = r.request(ctx, id, plugin, req.token)
		switch outcome {
		case OutcomeValue:
			produced = true
		case OutcomeNoValue, OutcomeTimeout, OutcomePanic:
			failed = true
		}
	}

	switch {
	case produced && breaker.GetState() == BreakerOpen:
		breaker.Reset()
	case produced:
		breaker.RecordSuccess()
	case failed:
		breaker.RecordFailure()
	}
}

// request performs one bounded plugin call and reports its outcome.
func (r *Resolver) request(ctx context.Context, id string, plugin Plugin, tok Token) (string, bool, string) {
	busy := r.busyFlag(id)
	if !busy.CompareAndSwap(false, true) {
		r.recordOutcome(id, OutcomeBusy)
		r.logger.Warn("Skipping plugin request", "token", tok.Text, "error", NewPluginBusyError(id))
		return "", false, OutcomeBusy
	}

	type result struct {
		value     string
		ok        bool
		recovered interface{}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.RequestTimeout)
	defer cancel()

	done := make(chan result, 1)
	start := time.Now()
	r.tracker.StartRequest(id)
	go func() {
		defer busy.Store(false)
		defer r.tracker.EndRequest(id)
		var res result
		res.recovered = callRecovered(func() {
			res.value, res.ok = plugin.OnRequest(callCtx, tok.Argument)
		})
		done <- res
	}()

	select {
	case res := <-done:
		r.metrics.RecordHistogram(MetricRequestLatency, map[string]string{"plugin": id}, time.Since(start).Seconds())
		switch {
		case res.recovered != nil:
			r.recordOutcome(id, OutcomePanic)
			r.logger.Error("Plugin request panicked", "token", tok.Text, "error", NewPluginPanicError(id, res.recovered))
			return "", false, OutcomePanic
		case !res.ok:
			r.recordOutcome(id, OutcomeNoValue)
			r.logger.Debug("Plugin returned no value", "token", tok.Text, "error", NewRequestFailedError(id, tok.Text))
			return "", false, OutcomeNoValue
		default:
			r.recordOutcome(id, OutcomeValue)
			return res.value, true, OutcomeValue
		}
	case <-callCtx.Done():
		r.recordOutcome(id, OutcomeTimeout)
		r.logger.Warn("Plugin request timed out", "token", tok.Text, "error", NewRequestTimeoutError(id, r.config.RequestTimeout))
		return "", false, OutcomeTimeout
	}
}

func (r *Resolver) recordOutcome(id, outcome string) {
	r.metrics.IncrementCounter(MetricPluginRequests, map[string]string{"plugin": id, "outcome": outcome}, 1)
}

func (r *Resolver) breaker(id string) *CircuitBreaker {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	cb, ok := r.breakers[id]
	if !ok {
		cb = NewCircuitBreaker(*r.config.CircuitBreaker, r.clock)
		r.breakers[id] = cb
	}
	return cb
}

func (r *Resolver) busyFlag(id string) *atomic.Bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	b, ok := r.busy[id]
	if !ok {
		b = &atomic.Bool{}
		r.busy[id] = b
	}
	return b
}

// BreakerStats returns circuit breaker statistics keyed by plugin identifier.
func (r *Resolver) BreakerStats() map[string]CircuitBreakerStats {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	out := make(map[string]CircuitBreakerStats, len(r.breakers))
	for id, cb := range r.breakers {
		out[id] = cb.GetStats()
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
