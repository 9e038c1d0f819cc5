//go:build linux

package sysmem

import "golang.org/x/sys/unix"

func read() (Stats, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Stats{}, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	totalRAM := uint64(info.Totalram) * unit
	freeRAM := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	totalSwap := uint64(info.Totalswap) * unit
	freeSwap := uint64(info.Freeswap) * unit

	total := totalRAM + totalSwap
	free := min(freeRAM+freeSwap, total)

	return Stats{
		TotalPhysical: totalRAM,
		TotalVirtual:  total,
		UsedVirtual:   total - free,
	}, nil
}
