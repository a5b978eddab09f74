package pm

// 两类保养的固定里程间隔。
const (
	OilInterval     int64 = 20000
	ChassisInterval int64 = 10000
)

// PmStatus 单车的保养到期快照。纯计算结果，不落库缓存，
// 任何时刻都能从持久化数据重新推导。
type PmStatus struct {
	Odometer              int64 `json:"odometer"`
	OilNextDue            int64 `json:"oil_next_due"`
	OilMilesRemaining     int64 `json:"oil_miles_remaining"`
	ChassisNextDue        int64 `json:"chassis_next_due"`
	ChassisMilesRemaining int64 `json:"chassis_miles_remaining"`
}

// nextDue 单类别的下次到期里程。
// last 为 nil 表示该类别没有任何保养历史：基准是第一个间隔；
// 当前里程已经严格超过基准时锚定到大于当前里程的最小间隔倍数，
// 避免给无历史车辆报一个已经过去的到期点。
// 有历史时永远是 last+interval，当前里程超过也不重新锚定。
func nextDue(odometer int64, last *int64, interval int64) int64 {
	if last == nil {
		base := interval
		if odometer > base {
			return (odometer/interval + 1) * interval
		}
		return base
	}
	return *last + interval
}

// ComputePmStatus 由车辆当前里程和各类别最近一次保养里程推导到期状态。
// lastOil / lastChassis 为 nil 表示该类别无历史。
func ComputePmStatus(odometer int64, lastOil, lastChassis *int64) PmStatus {
	oilNext := nextDue(odometer, lastOil, OilInterval)
	chassisNext := nextDue(odometer, lastChassis, ChassisInterval)
	return PmStatus{
		Odometer:              odometer,
		OilNextDue:            oilNext,
		OilMilesRemaining:     clampNonNegative(oilNext - odometer),
		ChassisNextDue:        chassisNext,
		ChassisMilesRemaining: clampNonNegative(chassisNext - odometer),
	}
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
