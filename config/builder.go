package config

import (
	"fmt"

	"github.com/agentvillage/swarmdeck"
)

// BuildOptions converts parsed configuration into SDK options for
// [swarmdeck.New].
//
// Feed entries marked enabled: false are left out entirely; feeds absent
// from the config run at their defaults. If every built-in feed is
// disabled the board still serves pre-registered viewports, so an empty
// feed set is not an error here: WithFeeds is always emitted, which marks
// the feed set explicit and keeps [swarmdeck.New] from re-installing the
// built-ins over it.
func BuildOptions(cfg *Config) ([]swarmdeck.Option, error) {
	opts := []swarmdeck.Option{
		swarmdeck.WithAPIBase(cfg.APIBase),
		swarmdeck.WithPort(cfg.Port),
	}

	if cfg.Title != "" {
		opts = append(opts, swarmdeck.WithTitle(cfg.Title))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, swarmdeck.WithHeaders(cfg.Headers))
	}

	feeds, err := buildFeeds(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, swarmdeck.WithFeeds(feeds...))

	for _, a := range cfg.Agents {
		opts = append(opts, swarmdeck.WithAgentViewport(a.ID, a.StreamURL))
	}

	return opts, nil
}

// buildFeeds constructs the built-in feed set, applying per-feed tuning
// from the config.
func buildFeeds(cfg *Config) ([]swarmdeck.Feed, error) {
	constructors := map[string]func(...swarmdeck.FeedOption) (swarmdeck.Feed, error){
		"live":      swarmdeck.LiveFeed,
		"chat":      swarmdeck.ChatFeed,
		"evaluator": swarmdeck.EvaluatorFeed,
	}

	var feeds []swarmdeck.Feed
	for _, key := range builtinFeeds {
		fc := cfg.Feeds[key]
		if fc.Enabled != nil && !*fc.Enabled {
			continue
		}

		var feedOpts []swarmdeck.FeedOption
		if fc.Interval != 0 {
			feedOpts = append(feedOpts, swarmdeck.WithInterval(fc.Interval.Duration()))
		}
		if fc.Timeout != 0 {
			feedOpts = append(feedOpts, swarmdeck.WithTimeout(fc.Timeout.Duration()))
		}

		feed, err := constructors[key](feedOpts...)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", key, err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}
