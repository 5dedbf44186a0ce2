package std

import (
	"fmt"
	"os"
	"os/exec"
)

const daemonizedEnv = "SILLY_DAEMONIZED"

// Daemonize detaches the process per spec.md §6's `daemon` flag: it
// re-execs itself with stdio rebound to /tmp/<progName>-<pid>.log and
// exits the parent, returning only in the detached child. Go has no
// portable fork(2), so unlike the reference's single fork+setsid this
// re-execs — the common idiom Go daemonizing CLIs use in place of a
// raw fork.
func Daemonize(progName string) error {
	if os.Getenv(daemonizedEnv) != "" {
		return nil
	}

	logPath := fmt.Sprintf("/tmp/%s-%d.log", progName, os.Getpid())
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonizedEnv+"=1")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return err
	}
	os.Exit(0)
	return nil
}
