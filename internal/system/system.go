// Package system touches the live hosts file: locating it per OS,
// installing the generated artifact over it and flushing DNS caches.
package system

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"hostsmith/internal/logger"
)

// HostsPath returns the location of the live hosts file.
func HostsPath() string {
	if runtime.GOOS == "windows" {
		windir := os.Getenv("SystemRoot")
		if windir == "" {
			windir = `C:\Windows`
		}
		return filepath.Join(windir, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// Install copies the generated hosts file over dest. Writing the live
// hosts file needs elevated rights, so on POSIX systems the copy runs
// through sudo.
func Install(generated, dest string) error {
	if runtime.GOOS == "windows" {
		return copyFile(generated, dest)
	}

	out, err := exec.Command("/usr/bin/sudo", "cp", generated, dest).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("sudo cp: %v: %s", err, msg)
		}
		return fmt.Errorf("sudo cp: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// DNSFlusher restarts whichever DNS cache services exist on the system
// so the freshly installed hosts file takes effect. Root confines the
// filesystem probes for tests, Run replaces the default sudo runner.
type DNSFlusher struct {
	Root string
	Run  func(name string, args ...string) error
	Log  *logger.Logger
}

// Flush probes for nscd init scripts, known systemd services and the
// dns-clean script, restarting every one it finds. Failures are logged,
// not returned: a missed cache flush never fails the run.
func (f *DNSFlusher) Flush() {
	found := false

	for _, prefix := range []string{"/etc", "/etc/rc.d"} {
		script := prefix + "/init.d/nscd"
		if !f.exists(script) {
			continue
		}
		found = true
		f.report("Flushing the DNS cache by restarting nscd", f.run(script, "restart"))
	}

	for _, prefix := range []string{"/usr", ""} {
		systemctl := prefix + "/bin/systemctl"
		for _, name := range []string{"NetworkManager", "wicd", "dnsmasq", "networking"} {
			service := name + ".service"
			if !f.exists(prefix + "/lib/systemd/system/" + service) {
				continue
			}
			found = true
			f.report("Flushing the DNS cache by restarting "+service, f.run(systemctl, "restart", service))
		}
	}

	if script := "/etc/init.d/dns-clean"; f.exists(script) {
		found = true
		f.report("Flushing the DNS cache via dns-clean executable", f.run(script, "start"))
	}

	if !found {
		f.Log.Warn("Unable to determine DNS management tool.")
	}
}

func (f *DNSFlusher) exists(path string) bool {
	info, err := os.Stat(filepath.Join(f.Root, path))
	return err == nil && !info.IsDir()
}

func (f *DNSFlusher) run(name string, args ...string) error {
	if f.Run != nil {
		return f.Run(name, args...)
	}
	cmd := exec.Command("/usr/bin/sudo", append([]string{name}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (f *DNSFlusher) report(action string, err error) {
	if err != nil {
		f.Log.Error("%s failed: %v.", action, err)
	} else {
		f.Log.Success("%s succeeded.", action)
	}
}
