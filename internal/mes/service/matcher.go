package service

import (
	"sort"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// RankMachines 能力匹配: 过滤出可用且满足轴数、类型要求的机床,
// 按轴数升序排列 (恰好满足的排在富余的前面, 避免高配机床被低要求订单占用),
// 轴数相同按编号升序. 没有可用机床时返回空序列, 不是错误.
func RankMachines(requiredAxes int, requiredType string, machines []entity.Machine) []entity.Machine {
	eligible := make([]entity.Machine, 0, len(machines))
	for _, m := range machines {
		if m.IsActive && !m.IsOccupied && m.Axes >= requiredAxes && m.Type == requiredType {
			eligible = append(eligible, m)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Axes != eligible[j].Axes {
			return eligible[i].Axes < eligible[j].Axes
		}
		return eligible[i].Code < eligible[j].Code
	})

	return eligible
}
