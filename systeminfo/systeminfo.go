package systeminfo

import (
	"fmt"
	"path/filepath"

	"dirdiff/logger"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type SystemInfo struct {
	Hostname        string           `json:"hostname,omitempty"`
	OS              string           `json:"os,omitempty"`
	OSVersion       string           `json:"os_version,omitempty"`
	Platform        string           `json:"platform,omitempty"`
	PlatformVersion string           `json:"platform_version,omitempty"`
	KernelVersion   string           `json:"kernel_version,omitempty"`
	CPUModel        string           `json:"cpu_model,omitempty"`
	LogicalCPUs     int              `json:"logical_cpus,omitempty"`
	PhysicalCores   int              `json:"physical_cores,omitempty"`
	TotalMemory     uint64           `json:"total_memory,omitempty"`
	AvailableMemory uint64           `json:"available_memory,omitempty"`
	Filesystems     []FilesystemInfo `json:"filesystems,omitempty"`
}

// FilesystemInfo describes the filesystem holding one comparison root.
type FilesystemInfo struct {
	Root   string `json:"root"`
	Path   string `json:"path"`
	FSType string `json:"fstype,omitempty"`
	Total  uint64 `json:"total"`
	Free   uint64 `json:"free"`
	Used   uint64 `json:"used"`
}

// Collect gathers host facts for the report header. Each probe that fails is
// logged and left empty.
func Collect(roots ...string) *SystemInfo {
	sysInfo := &SystemInfo{}

	if err := gatherHost(sysInfo); err != nil {
		logger.Warnf("Failed to gather host info: %v", err)
	}
	if err := gatherOSVersion(sysInfo); err != nil {
		logger.Warnf("Failed to gather OS version: %v", err)
	}
	if err := gatherCPU(sysInfo); err != nil {
		logger.Warnf("Failed to gather CPU info: %v", err)
	}
	if err := gatherMemory(sysInfo); err != nil {
		logger.Warnf("Failed to gather memory info: %v", err)
	}
	for _, root := range roots {
		if err := gatherFilesystem(sysInfo, root); err != nil {
			logger.Warnf("Failed to gather filesystem info for %s: %v", root, err)
		}
	}
	return sysInfo
}

func gatherHost(sysInfo *SystemInfo) error {
	info, err := host.Info()
	if err != nil {
		return fmt.Errorf("failed to get host info: %v", err)
	}
	sysInfo.Hostname = info.Hostname
	sysInfo.OS = info.OS
	sysInfo.Platform = info.Platform
	sysInfo.PlatformVersion = info.PlatformVersion
	sysInfo.KernelVersion = info.KernelVersion
	return nil
}

func gatherCPU(sysInfo *SystemInfo) error {
	logical, err := cpu.Counts(true)
	if err != nil {
		return fmt.Errorf("failed to count CPUs: %v", err)
	}
	sysInfo.LogicalCPUs = logical
	if physical, err := cpu.Counts(false); err == nil {
		sysInfo.PhysicalCores = physical
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		sysInfo.CPUModel = infos[0].ModelName
	}
	return nil
}

func gatherMemory(sysInfo *SystemInfo) error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("failed to get memory info: %v", err)
	}
	sysInfo.TotalMemory = vm.Total
	sysInfo.AvailableMemory = vm.Available
	return nil
}

func gatherFilesystem(sysInfo *SystemInfo, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	usage, err := disk.Usage(abs)
	if err != nil {
		return fmt.Errorf("failed to get disk usage: %v", err)
	}
	sysInfo.Filesystems = append(sysInfo.Filesystems, FilesystemInfo{
		Root:   root,
		Path:   usage.Path,
		FSType: usage.Fstype,
		Total:  usage.Total,
		Free:   usage.Free,
		Used:   usage.Used,
	})
	return nil
}
