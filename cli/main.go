// Command murmur-cli manages the dictation daemon: first-run setup, the
// systemd user service, and the headless run mode the service executes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"murmur/pkg/app"
	"murmur/pkg/config"
	"murmur/pkg/service"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const usage = `murmur-cli manages the murmur dictation daemon.

Usage:

  murmur-cli [flags] <command>

Commands:

  setup [api-key]  write the default config and store the Groq API key
  run              run the engine in the foreground (service entry point)
  install          install and enable the systemd user service
  uninstall        stop, disable, and remove the service
  start            start the service
  stop             stop the service
  restart          restart the service
  status           show service, API key, and backend status
  logs             show recent service logs
  version          print the version

Flags:

  -config path     config file (default ~/.config/murmur/config.yaml)
  -log-level s     override the configured log level (run)
  -lines n         journal lines to show (logs)
`

func main() {
	configPath := flag.String("config", "", "config file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	lines := flag.Int("lines", 15, "journal lines to show")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd {
	case "setup":
		err = cmdSetup(*configPath, flag.Arg(1))
	case "run":
		err = cmdRun(*configPath, *logLevel)
	case "install":
		err = cmdInstall()
	case "uninstall":
		if err = service.Uninstall(); err == nil {
			fmt.Println("service removed")
		}
	case "start":
		if err = service.Start(); err == nil {
			fmt.Println("service started")
		}
	case "stop":
		if err = service.Stop(); err == nil {
			fmt.Println("service stopped")
		}
	case "restart":
		if err = service.Restart(); err == nil {
			fmt.Println("service restarted")
		}
	case "status":
		err = cmdStatus(*configPath)
	case "logs":
		err = cmdLogs(*lines)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// cmdSetup writes the default config when none exists and stores the Groq
// API key, read from the argument or from a prompt. An empty key is
// accepted: transcription then runs local-only until one is configured.
func cmdSetup(configPath, key string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
	} else {
		fmt.Println("keeping existing config at", path)
	}

	if key == "" {
		fmt.Print("Groq API key (console.groq.com/keys, empty to skip): ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			key = strings.TrimSpace(scanner.Text())
		}
	}
	if key == "" {
		fmt.Println("no API key saved, staying local-only")
		return nil
	}
	if !strings.HasPrefix(key, "gsk_") {
		fmt.Println("note: Groq keys normally start with gsk_")
	}
	envFile, err := config.EnvFile()
	if err != nil {
		return err
	}
	if err := config.SaveAPIKey(envFile, key); err != nil {
		return err
	}
	fmt.Println("saved API key to", envFile)
	if service.IsRunning() {
		if err := service.Restart(); err != nil {
			return err
		}
		fmt.Println("service restarted")
	} else {
		fmt.Println("next: murmur-cli install && murmur-cli start")
	}
	return nil
}

// cmdRun is the systemd ExecStart target: the full engine, no tray, until
// SIGINT or SIGTERM.
func cmdRun(configPath, logLevel string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("murmur starting")
	return app.RunHeadless(cfg, log)
}

// cmdInstall points the unit at this binary, so the service survives the
// binary living anywhere on disk.
func cmdInstall() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate binary: %w", err)
	}
	envFile, err := config.EnvFile()
	if err != nil {
		return err
	}
	if err := service.Install(execPath, envFile); err != nil {
		return err
	}
	fmt.Println("service installed and enabled")
	fmt.Println("start it with: murmur-cli start")
	return nil
}

func cmdStatus(configPath string) error {
	st := service.GetStatus()
	switch {
	case st.Running:
		fmt.Printf("service:  running (%s)\n", st.Uptime)
	case st.Installed:
		fmt.Println("service:  stopped")
	default:
		fmt.Println("service:  not installed")
	}

	envFile, err := config.EnvFile()
	if err != nil {
		return err
	}
	if config.LoadAPIKey(envFile) != "" {
		fmt.Println("api key:  configured")
	} else {
		fmt.Println("api key:  not set")
	}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Println("primary: ", cfg.STT.Primary)
	fmt.Printf("hotkeys:  %s (hold), %s (toggle)\n", cfg.Hotkeys.PushToTalk, cfg.Hotkeys.Toggle)
	return nil
}

func cmdLogs(lines int) error {
	out, err := service.Logs(lines)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
