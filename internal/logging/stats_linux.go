//go:build linux

package logging

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// sampleMemory reads VmRSS and VmSize from /proc/self/status, both in kB.
func sampleMemory() (rssKB, vszKB int64, err error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "VmRSS:"):
			rssKB = parseKB(line)
		case strings.HasPrefix(line, "VmSize:"):
			vszKB = parseKB(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	if rssKB == 0 {
		return 0, 0, fmt.Errorf("VmRSS not found in /proc/self/status")
	}
	return rssKB, vszKB, nil
}

func parseKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
