package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AaronLay10/StepwiseEngine/internal/api"
	"github.com/AaronLay10/StepwiseEngine/internal/config"
	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/flow"
	"github.com/AaronLay10/StepwiseEngine/internal/mqtt"
	"github.com/AaronLay10/StepwiseEngine/internal/savefile"
	"github.com/AaronLay10/StepwiseEngine/internal/script"
	"github.com/AaronLay10/StepwiseEngine/internal/storage/postgres"
	"github.com/AaronLay10/StepwiseEngine/internal/storage/sqlite"
	"github.com/AaronLay10/StepwiseEngine/internal/version"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

func main() {
	configPath := flag.String("config", "engine.yaml", "path to engine.yaml (empty for defaults)")
	steps := flag.Int("steps", 0, "walk this many steps, save and exit instead of serving")
	interval := flag.Duration("interval", 0, "step automatically at this interval while serving")
	quiet := flag.Bool("quiet", false, "do not print events to stdout")
	flag.Parse()

	if err := run(*configPath, *steps, *interval, !*quiet); err != nil {
		log.Fatalf("walker: %v", err)
	}
}

// printEvents writes every emitted event to stdout as one JSON line.
func printEvents(sub events.Subscriber) {
	for e := range sub {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		fmt.Println(string(b))
	}
}

func run(configPath string, steps int, interval time.Duration, echo bool) error {
	if echo {
		printed := make(chan struct{})
		go func() {
			printEvents(events.Subscribe())
			close(printed)
		}()
		defer func() {
			events.CloseAllSubscribers()
			<-printed
		}()
	}

	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Session.GraphPath == "" {
		return errors.New("session.graph is required")
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "walker starting", map[string]interface{}{
		"service":  "walker",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"session":  cfg.Session.ID,
	})

	g, err := flow.LoadGraph(cfg.Session.GraphPath)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	warnInvalid(g, cfg.Session.GraphPath)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := loadState(ctx, store, cfg)
	if err != nil {
		return err
	}

	opts := walk.Options{
		RewindSteps:      cfg.Battle.RewindSteps,
		FailCooldown:     cfg.Gates.FailCooldownSteps,
		ResetTrackOnFail: cfg.Gates.ResetTrackOnFail,
		MaxChoices:       cfg.Exits.MaxChoices,
		Scripts:          script.NewEvaluator(),
	}
	publishers := walk.MultiPublisher{api.ProgressStream}

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient("stepwise-" + cfg.Session.ID)
		if err != nil {
			return err
		}
		connected := client.StartWithRetry()
		api.SetMQTTState(connected, !cfg.Battle.Remote)
		if connected {
			defer client.Disconnect()
			events.Emit("info", "mqtt.connected", "", map[string]interface{}{"broker": mqtt.BrokerURL()})
			publishers = append(publishers, mqtt.NewProgressPublisher(client, cfg.MQTT.TopicPrefix))
			if cfg.Battle.Remote {
				timeout := time.Duration(cfg.Battle.TimeoutSeconds) * time.Second
				bridge, err := mqtt.NewBattleBridge(client, cfg.MQTT.TopicPrefix, timeout)
				if err != nil {
					return fmt.Errorf("battle bridge: %w", err)
				}
				opts.Battle = bridge
			}
		} else if cfg.Battle.Remote {
			return fmt.Errorf("remote battles need mqtt at %s", mqtt.BrokerURL())
		}
	}
	opts.Publisher = publishers

	driver := walk.NewDriver(walk.NewController(g, state, opts))
	if err := driver.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	save := func(ctx context.Context) error {
		rec := driver.Export()
		h := savefile.NewHeader(cfg.Session.ID, cfg.Session.SaveSlot, rec)
		if err := store.Put(ctx, cfg.Session.SaveSlot, h, rec); err != nil {
			return fmt.Errorf("save %s: %w", cfg.Session.SaveSlot, err)
		}
		events.Emit("info", "save.written", "", map[string]interface{}{
			"slot":         cfg.Session.SaveSlot,
			"global_steps": rec.GlobalSteps,
			"node_id":      rec.CurrentNode,
		})
		return nil
	}

	if steps > 0 {
		n, err := driver.Run(ctx, steps)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("after %d steps: %w", n, err)
		}
		if err := save(context.Background()); err != nil {
			return err
		}
		events.Emit("info", "system.shutdown", "walker finished", map[string]interface{}{"steps": n})
		return nil
	}

	if cfg.Session.Watch {
		w, err := flow.NewWatcher(cfg.Session.GraphPath)
		if err != nil {
			return fmt.Errorf("watch graph: %w", err)
		}
		defer w.Close()
		go reloadGraphs(w, driver)
	}

	if err := api.InitAuth(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	api.InitTLS()
	api.InitMetrics(cfg.Session.ID)
	api.SetOperator(driver)
	api.SetSaver(save)
	api.SetWalkerReady(true)
	api.Start(cfg.UIPort())
	log.Printf("API listening on :%d", cfg.UIPort())

	if interval > 0 {
		go autoStep(ctx, driver, interval)
	}

	<-ctx.Done()
	api.SetWalkerReady(false)
	if err := save(context.Background()); err != nil {
		log.Printf("walker: %v", err)
	}
	events.Emit("info", "system.shutdown", "walker stopping", nil)
	return nil
}

// openStore returns the save store for the configured backend. Database
// backends also receive every emitted event.
func openStore(cfg *config.EngineConfig) (savefile.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreSQLite:
		s, err := sqlite.Open(filepath.Join(cfg.Session.SavePath, "stepwise.db"), cfg.Session.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		events.SetStore(s, cfg.Session.ID)
		return s, func() {
			events.SetStore(nil, "")
			s.Close()
		}, nil
	case config.StorePostgres:
		c, err := postgres.New(cfg.Session.ID)
		api.SetPostgresState(err == nil, false)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		events.SetStore(c, cfg.Session.ID)
		return c, func() {
			events.SetStore(nil, "")
			c.Close()
		}, nil
	default:
		return savefile.FileStore{Dir: cfg.Session.SavePath}, func() {}, nil
	}
}

// loadState resumes the configured slot, or starts fresh when it is empty.
func loadState(ctx context.Context, store savefile.Store, cfg *config.EngineConfig) (*walk.GameState, error) {
	h, rec, err := store.Get(ctx, cfg.Session.SaveSlot)
	if errors.Is(err, savefile.ErrNotFound) {
		return walk.NewGameState(cfg.Session.Seed), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load save %s: %w", cfg.Session.SaveSlot, err)
	}
	state, err := walk.Import(rec)
	if err != nil {
		return nil, fmt.Errorf("load save %s: %w", cfg.Session.SaveSlot, err)
	}
	events.Emit("info", "save.loaded", "", map[string]interface{}{
		"slot":         cfg.Session.SaveSlot,
		"saved_at":     h.SavedAt.Format(time.RFC3339),
		"global_steps": h.GlobalSteps,
		"node_id":      h.NodeID,
	})
	return state, nil
}

// warnInvalid reports authoring problems. Affected nodes degrade at runtime
// instead of stopping the session.
func warnInvalid(g *flow.Graph, path string) {
	if err := flow.Validate(g); err != nil {
		events.Emit("warn", "config.warning", "graph has authoring problems", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}

func reloadGraphs(w *flow.Watcher, driver *walk.Driver) {
	for {
		select {
		case g, ok := <-w.Graphs:
			if !ok {
				return
			}
			warnInvalid(g, "")
			driver.ReloadGraph(g)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			events.Emit("warn", "config.warning", "graph reload failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func autoStep(ctx context.Context, driver *walk.Driver, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := driver.Step(ctx); err != nil && ctx.Err() == nil {
				events.Emit("error", "system.error", "auto step failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
