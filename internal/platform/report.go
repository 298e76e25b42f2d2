package platform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"studioforge/pkg/types"
)

// HostReport is the hardware summary printed by `studioforge detect`.
// Fields that cannot be determined cheaply are left at their zero value.
type HostReport struct {
	Target   types.BuildTarget `json:"target"`
	CPUBrand string            `json:"cpu_brand,omitempty"`
	NumCPU   int               `json:"num_cpu"`
	RAMMB    int64             `json:"ram_mb,omitempty"`
	GPUName  string            `json:"gpu_name,omitempty"`
}

// Report resolves the target and gathers the hardware summary.
func (r *Resolver) Report(ctx context.Context) (HostReport, error) {
	t, err := r.Resolve(ctx)
	if err != nil {
		return HostReport{}, err
	}
	rep := HostReport{Target: t, NumCPU: runtime.NumCPU()}
	rep.CPUBrand = cpuBrand(r.GOOS)
	rep.RAMMB = totalRAMMB(r.GOOS)
	if t.Acceleration == types.AccelCUDA {
		rep.GPUName = nvidiaGPUName(ctx)
	} else if t.Acceleration == types.AccelMetal {
		rep.GPUName = "Apple GPU (Metal)"
	}
	return rep, nil
}

// WriteTable prints the report as an aligned key/value table.
func (rep HostReport) WriteTable(w io.Writer) {
	rows := [][2]string{
		{"Platform", string(rep.Target.OS)},
		{"Architecture", string(rep.Target.Arch)},
		{"Acceleration", string(rep.Target.Acceleration)},
		{"CPU", rep.CPUBrand},
		{"Cores", strconv.Itoa(rep.NumCPU)},
	}
	if rep.RAMMB > 0 {
		rows = append(rows, [2]string{"RAM", fmt.Sprintf("%.1f GB", float64(rep.RAMMB)/1024)})
	}
	if rep.GPUName != "" {
		rows = append(rows, [2]string{"GPU", rep.GPUName})
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%-14s %s\n", row[0], row[1])
	}
}

func cpuBrand(goos string) string {
	switch goos {
	case "linux":
		f, err := os.Open("/proc/cpuinfo")
		if err != nil {
			return ""
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := s.Text()
			if strings.HasPrefix(line, "model name") {
				if i := strings.IndexByte(line, ':'); i >= 0 {
					return strings.TrimSpace(line[i+1:])
				}
			}
		}
	case "darwin":
		out, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output()
		if err == nil {
			return strings.TrimSpace(string(out))
		}
	}
	return ""
}

func totalRAMMB(goos string) int64 {
	switch goos {
	case "linux":
		f, err := os.Open("/proc/meminfo")
		if err != nil {
			return 0
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := s.Text()
			if strings.HasPrefix(line, "MemTotal:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					kb, _ := strconv.ParseInt(fields[1], 10, 64)
					return kb / 1024
				}
			}
		}
	case "darwin":
		out, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
		if err == nil {
			b, _ := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
			return b / (1024 * 1024)
		}
	}
	return 0
}

func nvidiaGPUName(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}
