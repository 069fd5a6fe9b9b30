package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-ingest/internal/collector"
	"social-ingest/internal/config"
	"social-ingest/internal/ingest"
	"social-ingest/internal/model"
	"social-ingest/internal/pace"
	"social-ingest/internal/redisclient"
	"social-ingest/internal/sentiment"
	"social-ingest/internal/storage"
	"social-ingest/internal/telegram"
	"social-ingest/internal/vk"
)

// runtime bundles everything a run needs, so the one-shot and daemon
// commands share their wiring.
type runtime struct {
	cfg      config.Config
	pipeline *ingest.Pipeline
	sink     *storage.PostgresSink
	store    *storage.RedisStore
	groups   []ingest.Group
	rdb      *redis.Client
}

func (r *runtime) close() {
	r.sink.Close()
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}

// pacerFrom builds a provider pacer from validated config; durations were
// checked in Validate.
func pacerFrom(f config.FetchConfig) *pace.Pacer {
	minInterval, _ := time.ParseDuration(f.MinInterval)
	maxWait, _ := time.ParseDuration(f.MaxProviderWait)
	return pace.New(pace.Config{
		MinInterval:     minInterval,
		MaxProviderWait: maxWait,
		MaxRetries:      f.MaxRetries,
	})
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sink, err := storage.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	var store *storage.RedisStore
	if cfg.Redis.Addr != "" {
		rdb = redisclient.New(cfg.Redis)
		store = storage.NewRedisStore(rdb)
	}

	collectors := map[model.SourceType]collector.Collector{}
	if cfg.Ingest.VKListsDir != "" {
		vkc := &collector.VKCollector{
			API:        vk.NewClient(cfg.Sources.VK.BaseURL, cfg.Sources.VK.APIVersion, cfg.Sources.VK.Token),
			Pacer:      pacerFrom(cfg.Sources.VK.Fetch),
			PageSize:   cfg.Sources.VK.PageSize,
			BatchSize:  cfg.Sources.VK.CommentBatchSize,
			CommentCap: cfg.Sources.VK.CommentCap,
		}
		if store != nil {
			vkc.Cache = store
		}
		collectors[model.SourceVK] = vkc
	}
	if cfg.Ingest.TelegramListsDir != "" {
		collectors[model.SourceTelegram] = &collector.TelegramCollector{
			API:        telegram.NewClient(cfg.Sources.Telegram.BaseURL, cfg.Sources.Telegram.Token),
			Pacer:      pacerFrom(cfg.Sources.Telegram.Fetch),
			PageSize:   cfg.Sources.Telegram.PageSize,
			CommentCap: cfg.Sources.Telegram.CommentCap,
		}
	}

	var classifier sentiment.Classifier
	if cfg.OpenAI.APIKey != "" {
		classifier = sentiment.NewOpenAI(sentiment.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}

	groups, err := ingest.LoadGroups(cfg.Ingest.VKListsDir, cfg.Ingest.TelegramListsDir, cfg.Ingest.Topics)
	if err != nil {
		sink.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	return &runtime{
		cfg: cfg,
		pipeline: &ingest.Pipeline{
			Collectors:  collectors,
			Classifier:  classifier,
			Sink:        sink,
			Concurrency: cfg.Ingest.Concurrency,
		},
		sink:   sink,
		store:  store,
		groups: groups,
		rdb:    rdb,
	}, nil
}
