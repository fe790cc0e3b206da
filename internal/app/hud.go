package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/models"
	"github.com/Speshl/gorrc_hexapod/internal/motion"
	"github.com/prometheus/procfs"
)

func (a *App) startHud(ctx context.Context) error {
	hudTicker := time.NewTicker(hudInterval)
	defer hudTicker.Stop()

	p, err := procfs.Self()
	if err != nil {
		log.Warnf("procfs could not get process, hud has no process stats: %s", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Infof("stopping hud updater: %s", ctx.Err())
			return ctx.Err()
		case <-hudTicker.C:
			var stat *procfs.ProcStat
			var netInfo *procfs.NetDevLine
			if err == nil {
				stat, netInfo = processStats(p, a.cfg.ServerCfg.NetInterface)
			}
			a.broadcastHud(buildHud(a.controller.Status(), stat, netInfo))
		}
	}
}

func processStats(p procfs.Proc, netInterface string) (*procfs.ProcStat, *procfs.NetDevLine) {
	var stat *procfs.ProcStat
	procStat, err := p.Stat()
	if err == nil {
		stat = &procStat
	}

	netDev, err := p.NetDev()
	if err != nil {
		return stat, nil
	}
	line, ok := netDev[netInterface]
	if !ok {
		return stat, nil
	}
	return stat, &line
}

func buildHud(status motion.Status, stat *procfs.ProcStat, netInfo *procfs.NetDevLine) models.Hud {
	lines := make([]string, 0, 3)

	gaitName := status.Gait.Pattern
	if gaitName == "" {
		gaitName = "none"
	}
	line := fmt.Sprintf("State:%s | Gait:%s | Phase:%d | Cycle:%d", status.State, gaitName, status.Gait.Phase, status.Gait.Cycle)
	if status.Halted {
		line += " | HALTED"
	}
	lines = append(lines, line)

	if stat != nil {
		lines = append(lines, fmt.Sprintf("CPU:%.1fs | RSS:%dKB | Threads:%d",
			stat.CPUTime(),
			stat.ResidentMemory()/1024,
			stat.NumThreads,
		))
	}

	if netInfo != nil {
		lines = append(lines, fmt.Sprintf("RxPkt:%d | RxErr:%d | RxDrop: %d | TxPkt:%d | TxErr:%d | TxDrop: %d",
			netInfo.RxPackets,
			netInfo.RxErrors,
			netInfo.RxDropped,
			netInfo.TxPackets,
			netInfo.TxErrors,
			netInfo.TxDropped,
		))
	}

	return models.Hud{
		Lines: lines,
	}
}
