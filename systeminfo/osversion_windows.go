//go:build windows

package systeminfo

import "github.com/shirou/gopsutil/v4/host"

func gatherOSVersion(sysInfo *SystemInfo) error {
	info, err := host.Info()
	if err != nil {
		return err
	}
	sysInfo.OSVersion = info.Platform + " " + info.PlatformVersion
	return nil
}
