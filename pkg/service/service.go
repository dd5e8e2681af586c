// Package service manages the murmur systemd user unit so dictation
// starts with the desktop session and restarts after crashes.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const unitName = "murmur.service"

const unitTemplate = `[Unit]
Description=Murmur voice dictation daemon
After=graphical-session.target
PartOf=graphical-session.target

[Service]
Type=simple
ExecStart=%s run
Restart=on-failure
RestartSec=5
%s
[Install]
WantedBy=graphical-session.target
`

// unitContent renders the unit file. envFile is optional; when set it is
// referenced with systemd's "-" prefix so a missing file does not block
// startup.
func unitContent(execStart, envFile string) string {
	envLine := ""
	if envFile != "" {
		envLine = "EnvironmentFile=-" + envFile + "\n"
	}
	return fmt.Sprintf(unitTemplate, execStart, envLine)
}

// UnitPath returns where the user unit file lives, honoring
// XDG_CONFIG_HOME the same way systemd does.
func UnitPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, "systemd", "user", unitName), nil
}

// Install writes the unit file and enables it for the graphical session.
// execStart is the CLI binary path; envFile optionally points at the
// .env holding the API key.
func Install(execStart, envFile string) error {
	path, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create systemd dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(unitContent(execStart, envFile)), 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	return systemctl("enable", unitName)
}

// Uninstall stops and disables the unit and removes its file. Stop and
// disable failures are ignored so a half-installed unit can still be
// cleaned up.
func Uninstall() error {
	_ = systemctl("stop", unitName)
	_ = systemctl("disable", unitName)
	path, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	return systemctl("daemon-reload")
}

func Start() error { return systemctl("start", unitName) }

func Stop() error { return systemctl("stop", unitName) }

func Restart() error { return systemctl("restart", unitName) }

// IsInstalled reports whether the unit file exists.
func IsInstalled() bool {
	path, err := UnitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// IsRunning reports whether systemd considers the unit active.
func IsRunning() bool {
	out, _ := exec.Command("systemctl", "--user", "is-active", unitName).Output()
	return strings.TrimSpace(string(out)) == "active"
}

// systemd prints ActiveEnterTimestamp in this fixed layout.
const enterTimestampLayout = "Mon 2006-01-02 15:04:05 MST"

// Uptime reports how long the unit has been active, e.g. "2h 13m".
// Returns "unknown" when the unit is not running or the timestamp cannot
// be read.
func Uptime() string {
	out, err := exec.Command("systemctl", "--user", "show", unitName, "--property=ActiveEnterTimestamp").Output()
	if err != nil {
		return "unknown"
	}
	return uptimeFrom(string(out), time.Now())
}

func uptimeFrom(raw string, now time.Time) string {
	_, value, found := strings.Cut(strings.TrimSpace(raw), "=")
	if !found {
		return "unknown"
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	started, err := time.Parse(enterTimestampLayout, value)
	if err != nil {
		return "unknown"
	}
	delta := now.Sub(started)
	if delta < 0 {
		return "unknown"
	}
	hours := int(delta.Hours())
	minutes := int(delta.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Logs returns the most recent journal lines for the unit.
func Logs(lines int) (string, error) {
	out, err := exec.Command("journalctl", "--user", "-u", unitName,
		"-n", strconv.Itoa(lines), "--no-pager").Output()
	if err != nil {
		return "", fmt.Errorf("journalctl: %w", err)
	}
	return string(out), nil
}

// Status is a point-in-time snapshot for the status command.
type Status struct {
	Installed bool
	Running   bool
	Uptime    string
}

// GetStatus aggregates the checks the status command prints.
func GetStatus() Status {
	st := Status{
		Installed: IsInstalled(),
		Running:   IsRunning(),
	}
	if st.Running {
		st.Uptime = Uptime()
	}
	return st
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl --user %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
