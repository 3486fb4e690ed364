// seafair is a small CLI for working with seafair store files.
//
// Usage:
//
//	seafair [flags]                 Open a data directory and enter a REPL
//	seafair info <class>            One-shot summary of a class's store file
//	seafair config init             Write a commented default config file
//
// Flags:
//
//	-d, --data-dir     Data directory holding store files (default: ./data)
//	    --durability   Flush discipline: none, app or os (default: app)
//	    --shared       Keep every record type in one shared store file
//	-c, --config       Config file path (default: ~/.config/seafair/config.json)
//
// Commands (in REPL):
//
//	register <class> <field[,field...]>   Register a record type with its key fields
//	types                                 List registered classes
//	set <class> <field=value ...> -- <blob>   Store a raw blob
//	get <class> <field=value ...>         Retrieve a raw blob
//	save <class> <field=value ...>        Store the full field map as a JSON record
//	find <class> <field=value ...>        Retrieve and decode a record
//	info <class>                          Show table count, sizes and ranges
//	bench <class> <count>                 Time count save+find round trips
//	help                                  Show this help
//	exit / quit / q                       Exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/iamNilotpal/seafair/pkg/options"
	"github.com/iamNilotpal/seafair/pkg/seafair"
)

// Config holds the options the CLI reads from its config file.
type Config struct {
	DataDir       string `json:"data_dir,omitempty"`
	Durability    string `json:"durability,omitempty"`
	FlushInterval int    `json:"flush_interval,omitempty"`
}

// defaultConfigBody is written by `config init`. HuJSON keeps the
// comments legal.
const defaultConfigBody = `{
	// Directory holding the .sea store files.
	"data_dir": "./data",

	// Flush discipline: "none", "app" or "os".
	"durability": "app",

	// Mutations between syncs when durability is "none".
	"flush_interval": 100,
}
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("seafair", pflag.ContinueOnError)
	dataDir := flags.StringP("data-dir", "d", "", "data directory holding store files")
	durability := flags.String("durability", "", "flush discipline: none, app or os")
	shared := flags.Bool("shared", false, "keep every record type in one shared store file")
	configPath := flags.StringP("config", "c", "", "config file path")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	args := flags.Args()

	if len(args) >= 2 && args[0] == "config" && args[1] == "init" {
		return configInit(*configPath)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// CLI flags override the config file, which overrides defaults.
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *durability != "" {
		cfg.Durability = *durability
	}

	opts := []options.OptionFunc{}
	if cfg.DataDir != "" {
		opts = append(opts, options.WithDataDir(cfg.DataDir))
	}
	if cfg.Durability != "" {
		level := options.Durability(cfg.Durability)
		if !level.Valid() {
			return fmt.Errorf("invalid durability level %q (want none, app or os)", cfg.Durability)
		}
		opts = append(opts, options.WithDurability(level))
	}
	if cfg.FlushInterval > 0 {
		opts = append(opts, options.WithFlushInterval(cfg.FlushInterval))
	}
	if *shared {
		opts = append(opts, options.WithSharedFile())
	}

	ctx := context.Background()
	store, err := seafair.Open(ctx, "seafair-cli", opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) >= 2 && args[0] == "info" {
		return oneShotInfo(ctx, store, args[1])
	}
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q", args[0])
	}

	return repl(ctx, store)
}

// configInit writes the commented default config file. The write is
// atomic so a half-written config can never shadow a working one.
func configInit(path string) error {
	if path == "" {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(defaultConfigBody)); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// defaultConfigPath returns ~/.config/seafair/config.json, honoring
// XDG_CONFIG_HOME when set.
func defaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "seafair", "config.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "seafair", "config.json"), nil
}

// loadConfig reads the HuJSON config file if one exists. A missing file
// at the default path is not an error; the defaults apply. A file named
// explicitly with --config must exist and be readable.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		if explicit {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		return Config{}, nil
	}

	// HuJSON allows comments and trailing commas; standardize to plain
	// JSON before unmarshaling.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// oneShotInfo registers a throwaway binding for the class and prints the
// store-file summary.
func oneShotInfo(ctx context.Context, store *seafair.Store, class string) error {
	// Stat needs a registered class; key fields are irrelevant for it.
	if err := store.Register(ctx, &seafair.RecordType{Name: class, KeyFields: []string{"id"}}); err != nil {
		return err
	}
	return printInfo(store, class)
}

func printInfo(store *seafair.Store, class string) error {
	stats, err := store.Stat(class)
	if err != nil {
		return err
	}

	fmt.Printf("file:      %s\n", stats.Path)
	fmt.Printf("file size: %d bytes\n", stats.FileSize)
	fmt.Printf("tables:    %d\n", stats.Tables)
	for i := 0; i < stats.Tables; i++ {
		fmt.Printf("  T%-2d offset=%-12d size=%-12d range=%d\n", i, stats.Ptrs[i], stats.Sizes[i], stats.Ranges[i])
	}
	return nil
}

// repl runs the interactive loop.
func repl(ctx context.Context, store *seafair.Store) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("seafair REPL. Type 'help' for commands.")

	for {
		input, err := line.Prompt("seafair> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if done, err := dispatch(ctx, store, input); done {
			return err
		} else if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// dispatch executes one REPL command. The boolean result requests exit.
func dispatch(ctx context.Context, store *seafair.Store, input string) (bool, error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true, nil

	case "help":
		printHelp()
		return false, nil

	case "types":
		for _, class := range store.Classes() {
			fmt.Println(class)
		}
		return false, nil

	case "register":
		if len(args) != 2 {
			return false, errors.New("usage: register <class> <field[,field...]>")
		}
		keyFields := strings.Split(args[1], ",")
		err := store.Register(ctx, &seafair.RecordType{Name: args[0], KeyFields: keyFields})
		return false, err

	case "set":
		class, fieldMap, blob, err := parseSetArgs(args)
		if err != nil {
			return false, err
		}
		return false, store.Set(ctx, class, fieldMap, blob)

	case "get":
		class, fieldMap, err := parseFieldArgs(args)
		if err != nil {
			return false, err
		}
		blob, found, err := store.Get(ctx, class, fieldMap)
		if err != nil {
			return false, err
		}
		if !found {
			fmt.Println("(not found)")
			return false, nil
		}
		fmt.Printf("%s\n", blob)
		return false, nil

	case "save":
		class, fieldMap, err := parseFieldArgs(args)
		if err != nil {
			return false, err
		}
		return false, store.Save(ctx, class, fieldMap)

	case "find":
		class, fieldMap, err := parseFieldArgs(args)
		if err != nil {
			return false, err
		}
		decoded, found, err := store.Find(ctx, class, fieldMap)
		if err != nil {
			return false, err
		}
		if !found {
			fmt.Println("(not found)")
			return false, nil
		}
		pretty, err := json.MarshalIndent(decoded, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Printf("%s\n", pretty)
		return false, nil

	case "info":
		if len(args) != 1 {
			return false, errors.New("usage: info <class>")
		}
		return false, printInfo(store, args[0])

	case "bench":
		if len(args) != 2 {
			return false, errors.New("usage: bench <class> <count>")
		}
		count, err := strconv.Atoi(args[1])
		if err != nil || count <= 0 {
			return false, errors.New("count must be a positive integer")
		}
		return false, bench(ctx, store, args[0], count)

	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

// parseFieldArgs parses "<class> <field=value ...>" into a class and
// field map. Values stay strings; the digest hashes their string forms
// anyway.
func parseFieldArgs(args []string) (string, seafair.Fields, error) {
	if len(args) < 2 {
		return "", nil, errors.New("usage: <class> <field=value ...>")
	}

	class := args[0]
	fieldMap := make(seafair.Fields, len(args)-1)
	for _, pair := range args[1:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return "", nil, fmt.Errorf("malformed field %q (want field=value)", pair)
		}
		fieldMap[name] = value
	}
	return class, fieldMap, nil
}

// parseSetArgs parses "<class> <field=value ...> -- <blob>". Everything
// after the separator is stored verbatim.
func parseSetArgs(args []string) (string, seafair.Fields, []byte, error) {
	sep := -1
	for i, arg := range args {
		if arg == "--" {
			sep = i
			break
		}
	}
	if sep < 0 || sep == len(args)-1 {
		return "", nil, nil, errors.New("usage: set <class> <field=value ...> -- <blob>")
	}

	class, fieldMap, err := parseFieldArgs(args[:sep])
	if err != nil {
		return "", nil, nil, err
	}

	blob := []byte(strings.Join(args[sep+1:], " "))
	return class, fieldMap, blob, nil
}

// bench times count save+find round trips over sequential keys.
func bench(ctx context.Context, store *seafair.Store, class string, count int) error {
	if _, err := store.Stat(class); err != nil {
		if err := store.Register(ctx, &seafair.RecordType{Name: class, KeyFields: []string{"id"}}); err != nil {
			return err
		}
	}

	start := time.Now()
	for i := 0; i < count; i++ {
		if err := store.Save(ctx, class, seafair.Fields{"id": i, "payload": i * i}); err != nil {
			return err
		}
	}
	writes := time.Since(start)

	start = time.Now()
	var missing int
	for i := 0; i < count; i++ {
		_, found, err := store.Find(ctx, class, seafair.Fields{"id": i})
		if err != nil {
			return err
		}
		if !found {
			missing++
		}
	}
	reads := time.Since(start)

	fmt.Printf("saves: %d in %v (%.0f/s)\n", count, writes, float64(count)/writes.Seconds())
	fmt.Printf("finds: %d in %v (%.0f/s), %d missing\n", count, reads, float64(count)/reads.Seconds(), missing)
	return nil
}

func printHelp() {
	fmt.Print(`commands:
  register <class> <field[,field...]>       register a record type
  types                                      list registered classes
  set <class> <field=value ...> -- <blob>    store a raw blob
  get <class> <field=value ...>              retrieve a raw blob
  save <class> <field=value ...>             store the field map as a record
  find <class> <field=value ...>             retrieve and decode a record
  info <class>                               show store-file layout
  bench <class> <count>                      time save+find round trips
  exit | quit | q                            leave the REPL
`)
}
