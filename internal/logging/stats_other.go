//go:build !linux

package logging

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// sampleMemory asks the OS process table via ps, in kB.
func sampleMemory() (rssKB, vszKB int64, err error) {
	out, err := exec.Command("ps", "-o", "rss=,vsz=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("unexpected ps output: %q", out)
	}
	rssKB, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	vszKB, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return rssKB, vszKB, nil
}
