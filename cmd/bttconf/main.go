package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	bttconf "github.com/btt-go/btt-conf"
)

var signalNotify = signal.Notify

type options struct {
	logLevel  string
	redisAddr string
	prefix    string

	publishFile    string
	publishReplace bool
	publishDeletes []string

	dumpFile string
	dumpRaw  bool

	watchFile     string
	watchInterval time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var opts options

	app := kingpin.New("bttconf", "Publish, inspect and watch hot-reloadable properties")
	app.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").Envar("BTTCONF_LOG_LEVEL").StringVar(&opts.logLevel)
	app.Flag("redis", "Redis address").Default("127.0.0.1:6379").Envar("BTTCONF_REDIS_ADDR").StringVar(&opts.redisAddr)
	app.Flag("prefix", "Redis key prefix").Default("btt-conf:").Envar("BTTCONF_PREFIX").StringVar(&opts.prefix)

	publishCmd := app.Command("publish", "Publish a properties file to Redis")
	publishCmd.Arg("file", "Properties file").Required().ExistingFileVar(&opts.publishFile)
	publishCmd.Flag("full-replace", "Replace all published keys instead of merging").BoolVar(&opts.publishReplace)
	publishCmd.Flag("delete", "Key to delete (repeatable)").StringsVar(&opts.publishDeletes)

	dumpCmd := app.Command("dump", "Resolve known settings from a file or Redis and print YAML")
	dumpCmd.Flag("file", "Read a properties file instead of Redis").StringVar(&opts.dumpFile)
	dumpCmd.Flag("raw", "Print raw key/values instead of resolved settings").BoolVar(&opts.dumpRaw)

	watchCmd := app.Command("watch", "Keep a store loaded and log every reload until interrupted")
	watchCmd.Flag("file", "Watch a properties file instead of Redis").StringVar(&opts.watchFile)
	watchCmd.Flag("interval", "Periodic reload interval (0 to rely on change events only)").Default("30s").DurationVar(&opts.watchInterval)

	cmd, err := app.Parse(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	bttconf.SetPrefix(opts.prefix)

	switch cmd {
	case publishCmd.FullCommand():
		return publish(opts, logger)
	case dumpCmd.FullCommand():
		return dump(opts, logger, stdout)
	case watchCmd.FullCommand():
		return watch(opts, logger)
	}
	return nil
}

func newRedisClient(opts options) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: opts.redisAddr})
}

func publish(opts options, logger *zap.Logger) error {
	ctx := context.Background()

	values, err := bttconf.NewFileSource(opts.publishFile).Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.publishFile, err)
	}

	rdb := newRedisClient(opts)
	defer rdb.Close()

	hash, err := bttconf.NewPublisher(rdb).Publish(ctx, bttconf.PublishRequest{
		FullReplace: opts.publishReplace,
		Set:         values,
		Deletes:     opts.publishDeletes,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	logger.Info("published properties",
		zap.String("file", opts.publishFile),
		zap.String("hash", hash),
		zap.Int("keys", len(values)),
	)
	return nil
}

func dump(opts options, logger *zap.Logger, stdout io.Writer) error {
	var src bttconf.Source
	if opts.dumpFile != "" {
		src = bttconf.NewFileSource(opts.dumpFile)
	} else {
		rdb := newRedisClient(opts)
		defer rdb.Close()
		src = bttconf.NewRedisSource(rdb)
	}

	store := bttconf.New(src, bttconf.WithLogger(logger), bttconf.WithReloadInterval(0))
	defer store.Close()

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	defer enc.Close()

	if opts.dumpRaw {
		return enc.Encode(sortedValues(store.Snapshot()))
	}
	return enc.Encode(bttconf.NewSettings(store).Resolve())
}

// sortedValues 按 Key 排序输出，便于比对。
func sortedValues(ss *bttconf.Snapshot) *yaml.Node {
	keys := make([]string, 0, ss.Len())
	for k := range ss.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: ss.Values[k], Style: yaml.DoubleQuotedStyle},
		)
	}
	return node
}

func watch(opts options, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeOpts := []bttconf.Option{
		bttconf.WithLogger(logger),
		bttconf.WithReloadInterval(opts.watchInterval),
	}

	if opts.watchFile != "" {
		store := bttconf.New(bttconf.NewFileSource(opts.watchFile), storeOpts...)
		defer store.Close()

		w, err := bttconf.NewFileWatcher(opts.watchFile, store)
		if err != nil {
			return fmt.Errorf("create file watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start file watcher: %w", err)
		}
		defer w.Stop()

		waitForSignal(logger)
		return nil
	}

	rdb := newRedisClient(opts)
	defer rdb.Close()

	src := bttconf.NewRedisSource(rdb)
	store := bttconf.New(src, storeOpts...)
	defer store.Close()

	go func() {
		if err := src.Watch(ctx, store); err != nil && ctx.Err() == nil {
			logger.Error("redis watch stopped", zap.Error(err))
		}
	}()

	waitForSignal(logger)
	return nil
}

func waitForSignal(logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down watcher")
}
