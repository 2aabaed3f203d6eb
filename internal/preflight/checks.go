package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"hikfetch/internal/config"
	"hikfetch/internal/isapi"
)

// MinFreeBytes is the free space below which the archive check fails.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the space available to unprivileged writers under path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace fails when fewer than minimum bytes are available under path.
func CheckFreeSpace(name, path string, minimum uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < minimum {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (below %s)", humanize.IBytes(minimum))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// DeviceConfig builds the recorder connection settings from config.
func DeviceConfig(cfg *config.Config) isapi.Config {
	return isapi.Config{
		BaseURL:  cfg.Device.URL,
		Username: cfg.Device.Username,
		Password: cfg.Device.Password,
		Timeout:  cfg.RequestTimeout(),
	}
}

// DeviceProbe is what a successful device check learned.
type DeviceProbe struct {
	Scheme      isapi.AuthScheme
	ClockOffset time.Duration
}

// ProbeDevice negotiates authentication and reads the device clock offset.
func ProbeDevice(ctx context.Context, cfg isapi.Config) (DeviceProbe, error) {
	session, err := isapi.Connect(ctx, cfg)
	if err != nil {
		return DeviceProbe{}, err
	}
	offset, err := session.ClockOffset(ctx)
	if err != nil {
		return DeviceProbe{Scheme: session.Scheme()}, fmt.Errorf("read device clock: %w", err)
	}
	return DeviceProbe{Scheme: session.Scheme(), ClockOffset: offset}, nil
}

// CheckDevice verifies the recorder accepts the configured credentials.
func CheckDevice(ctx context.Context, cfg isapi.Config) Result {
	const name = "Device"
	if cfg.BaseURL == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	probe, err := ProbeDevice(ctx, cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeDeviceError(err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s auth, clock offset %s", probe.Scheme, FormatOffset(probe.ClockOffset)),
	}
}

func summarizeDeviceError(err error) string {
	if errors.Is(err, isapi.ErrUnauthorized) {
		return "unauthorized (check device login and password)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "device unresponsive (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "device unreachable (timed out)"
	}
	return err.Error()
}

// FormatOffset renders a clock offset as UTC+HH:MM.
func FormatOffset(offset time.Duration) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hours := int(offset / time.Hour)
	minutes := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, hours, minutes)
}
