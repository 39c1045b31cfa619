package discovery

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ScanKicadProcesses inspects running processes for anything named "kicad"
// and extracts the project directory (the parent of any .kicad_pro
// argument on its command line). The result is deduplicated and sorted.
func ScanKicadProcesses() []string {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}

	var argLists [][]string
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.Contains(strings.ToLower(name), "kicad") {
			continue
		}
		cmdline, err := p.CmdlineSlice()
		if err != nil {
			continue
		}
		argLists = append(argLists, cmdline)
	}

	return ExtractProjectDirs(argLists)
}

// ExtractProjectDirs is the testable core of ScanKicadProcesses: given a set
// of command-line argument lists, it returns the deduplicated, sorted set
// of directories containing a .kicad_pro argument.
func ExtractProjectDirs(argLists [][]string) []string {
	seen := make(map[string]bool)
	var dirs []string

	for _, args := range argLists {
		for _, arg := range args {
			if !strings.HasSuffix(arg, ".kicad_pro") {
				continue
			}
			dir := filepath.Dir(arg)
			if seen[dir] {
				continue
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	sort.Strings(dirs)
	return dirs
}
