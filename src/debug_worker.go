package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

// formatDebugValue formats a float with smart precision
func formatDebugValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m" // Yellow for zone changes
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Global readline writer for log output
var rlWriter = &readlineWriter{}

// DebugState tracks the latest state of every zone worker and which ones are watched
type DebugState struct {
	latest   map[string]ZoneUpdate
	watches  []string
	topics   map[string]string // mapper name -> input topic
	feedChan chan<- SensorMessage
	reconfig map[string]chan<- []ThresholdConfig
	rl       *readline.Instance
	out      io.Writer
}

// NewDebugState creates a new debug state for the given mappers
func NewDebugState(
	configs []ZoneMapperConfig,
	feedChan chan<- SensorMessage,
	reconfig map[string]chan<- []ThresholdConfig,
) *DebugState {
	topics := make(map[string]string, len(configs))
	for _, c := range configs {
		topics[c.DeviceID()] = c.InputTopic
	}
	return &DebugState{
		latest:   make(map[string]ZoneUpdate),
		topics:   topics,
		feedChan: feedChan,
		reconfig: reconfig,
		out:      os.Stdout,
	}
}

// SetReadline sets the readline instance for proper output handling
func (s *DebugState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// print outputs a line, handling readline prompt properly
func (s *DebugState) print(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if s.rl != nil {
		s.rl.Clean()
		_, _ = fmt.Fprintln(s.out, line)
		s.rl.Refresh()
	} else {
		_, _ = fmt.Fprintln(s.out, line)
	}
}

// resolve maps a user supplied name to a mapper ID ("Water Tank" and "water_tank" both work)
func (s *DebugState) resolve(name string) (string, bool) {
	id := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	_, ok := s.topics[id]
	return id, ok
}

// AddWatch prints every update for a mapper
func (s *DebugState) AddWatch(id string) {
	if slices.Contains(s.watches, id) {
		log.Printf("Already watching: %s", id)
		return
	}
	s.watches = append(s.watches, id)
	slices.Sort(s.watches)
	log.Printf("Watching: %s", id)
}

// RemoveWatch stops printing updates for a mapper
func (s *DebugState) RemoveWatch(id string) bool {
	i := slices.Index(s.watches, id)
	if i < 0 {
		return false
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	log.Printf("Unwatched: %s", id)
	return true
}

// RemoveAll removes all watches
func (s *DebugState) RemoveAll() {
	s.watches = s.watches[:0]
	log.Println("All watches removed")
}

// formatUpdate renders one mapper's state as a single line
func formatUpdate(id string, u ZoneUpdate) string {
	line := fmt.Sprintf("%s: zone %d/%d value %s", id, u.Zone, u.ZoneCount-1, formatDebugValue(u.Value))
	if u.HasRange {
		line += fmt.Sprintf(" (1h %s..%s)", formatDebugValue(u.Min), formatDebugValue(u.Max))
	}
	return line
}

// HandleUpdate records an update and prints it if the mapper is watched
func (s *DebugState) HandleUpdate(u ZoneUpdate) {
	id, _ := s.resolve(u.Name)
	s.latest[id] = u

	if !slices.Contains(s.watches, id) {
		return
	}
	line := formatUpdate(id, u)
	if u.Changed {
		line = ansiYellow + line + ansiReset
	}
	s.print("%s", line)
}

// ListMappers prints every mapper with its latest state
func (s *DebugState) ListMappers() {
	ids := make([]string, 0, len(s.topics))
	for id := range s.topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.print("Zone mappers (%d):", len(ids))
	for _, id := range ids {
		u, ok := s.latest[id]
		if !ok {
			s.print("  %s: waiting for %s", id, s.topics[id])
			continue
		}
		s.print("  %s", formatUpdate(id, u))
	}
}

// ShowMapper prints the thresholds and latest state of one mapper
func (s *DebugState) ShowMapper(id string) {
	u, ok := s.latest[id]
	if !ok {
		s.print("%s: no readings yet on %s", id, s.topics[id])
		return
	}
	s.print("%s", formatUpdate(id, u))
	s.print("  input: %s", s.topics[id])
	for i, th := range u.Thresholds {
		s.print("  threshold %d: %s / %s / %s", i,
			formatDebugValue(th.Low), formatDebugValue(th.Center), formatDebugValue(th.High))
	}
}

// Feed injects a reading as if it had arrived from MQTT
func (s *DebugState) Feed(topic, value string) {
	s.feedChan <- SensorMessage{Topic: topic, Value: value}
}

// SetThresholds sends a new threshold set to a zone worker
func (s *DebugState) SetThresholds(id string, thresholds []ThresholdConfig) bool {
	ch, ok := s.reconfig[id]
	if !ok {
		return false
	}
	select {
	case ch <- thresholds:
		return true
	default:
		log.Printf("%s: reconfigure already pending", id)
		return false
	}
}

// handleDebugCommand processes a debug command
func handleDebugCommand(cmd string, state *DebugState) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	// Commands taking a mapper name resolve it first
	mapperArg := func() (string, bool) {
		if len(parts) < 2 {
			log.Printf("Usage: %s <mapper>", parts[0])
			return "", false
		}
		id, ok := state.resolve(parts[1])
		if !ok {
			log.Printf("Unknown mapper: %s (try 'list')", parts[1])
		}
		return id, ok
	}

	switch parts[0] {
	case "list":
		state.ListMappers()

	case "show":
		if id, ok := mapperArg(); ok {
			state.ShowMapper(id)
		}

	case "watch":
		if id, ok := mapperArg(); ok {
			state.AddWatch(id)
		}

	case "unwatch":
		if len(parts) == 2 && parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		if id, ok := mapperArg(); ok && !state.RemoveWatch(id) {
			log.Printf("No watch found for: %s", id)
		}

	case "feed":
		if len(parts) != 3 {
			log.Println("Usage: feed <mapper|topic> <value>")
			return
		}
		if _, err := strconv.ParseFloat(parts[2], 64); err != nil {
			log.Printf("Error: invalid value %q", parts[2])
			return
		}
		topic := parts[1]
		if id, ok := state.resolve(parts[1]); ok {
			topic = state.topics[id]
		}
		state.Feed(topic, parts[2])

	case "thresholds":
		id, ok := mapperArg()
		if !ok {
			return
		}
		if len(parts) == 2 {
			state.ShowMapper(id)
			return
		}
		thresholds, err := ParseThresholds(strings.Join(parts[2:], ""))
		if err != nil {
			log.Printf("Error: %v", err)
			return
		}
		if state.SetThresholds(id, thresholds) {
			log.Printf("Sent %d thresholds to %s", len(thresholds), id)
		}

	case "help":
		state.print("Commands:")
		state.print("  list                             - List all zone mappers")
		state.print("  show <mapper>                    - Show thresholds and latest state")
		state.print("  watch <mapper>                   - Print every update (changes highlighted)")
		state.print("  unwatch <mapper> | --all         - Stop printing updates")
		state.print("  feed <mapper|topic> <value>      - Inject a reading")
		state.print("  thresholds <mapper> <list>       - Replace thresholds, e.g. 9:10:11,20±1")
		state.print("  help                             - Show this help")

	default:
		log.Printf("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		line = strings.TrimSpace(line)
		if line != "" {
			commandChan <- line
		}
	}
}

// getHistoryFilePath returns the path for debug history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	zonectlCache := filepath.Join(cacheDir, "zonectl")
	_ = os.MkdirAll(zonectlCache, 0750)
	return filepath.Join(zonectlCache, "debug_history")
}

// debugWorker provides an interactive console for inspecting and driving zone workers
func debugWorker(ctx context.Context, cancel context.CancelFunc, updateChan <-chan ZoneUpdate, state *DebugState) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "zonectl> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Printf("Debug worker: readline init failed: %v", err)
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil
	}()

	// Redirect log output through readline-aware writer
	rlWriter.rl = rl
	log.SetOutput(rlWriter)

	log.Println("Debug worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case cmd := <-commandChan:
			handleDebugCommand(cmd, state)
		case update := <-updateChan:
			state.HandleUpdate(update)
		case <-ctx.Done():
			log.Println("Debug worker stopped")
			return
		}
	}
}
