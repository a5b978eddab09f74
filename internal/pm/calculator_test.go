package pm

import "testing"

func intp(v int64) *int64 { return &v }

func TestComputePmStatusNoHistory(t *testing.T) {
	// 无历史、里程没过第一个间隔：到期点就是间隔本身。
	got := ComputePmStatus(5000, nil, nil)
	if got.OilNextDue != 20000 || got.OilMilesRemaining != 15000 {
		t.Fatalf("oil: %+v", got)
	}
	if got.ChassisNextDue != 10000 || got.ChassisMilesRemaining != 5000 {
		t.Fatalf("chassis: %+v", got)
	}

	// 无历史、里程已过第一个间隔：锚定到大于当前里程的最小倍数。
	got = ComputePmStatus(18000, nil, nil)
	if got.OilNextDue != 20000 || got.OilMilesRemaining != 2000 {
		t.Fatalf("oil at 18000: %+v", got)
	}
	if got.ChassisNextDue != 20000 || got.ChassisMilesRemaining != 2000 {
		t.Fatalf("chassis at 18000: %+v", got)
	}

	// 正好踩在机油间隔上：没有严格超过，不锚定，剩余为 0；
	// 底盘间隔（10000）此时已被严格超过，锚定到 30000。
	got = ComputePmStatus(20000, nil, nil)
	if got.OilNextDue != 20000 || got.OilMilesRemaining != 0 {
		t.Fatalf("oil at 20000: %+v", got)
	}
	if got.ChassisNextDue != 30000 || got.ChassisMilesRemaining != 10000 {
		t.Fatalf("chassis at 20000: %+v", got)
	}

	got = ComputePmStatus(47000, nil, nil)
	if got.OilNextDue != 60000 || got.ChassisNextDue != 50000 {
		t.Fatalf("anchoring at 47000: %+v", got)
	}
}

func TestComputePmStatusWithHistory(t *testing.T) {
	// 有历史：永远是 last+interval，里程超过也不重新锚定。
	got := ComputePmStatus(45000, intp(22000), nil)
	if got.OilNextDue != 42000 {
		t.Fatalf("oil next due: %+v", got)
	}
	// 剩余里程不出负数。
	if got.OilMilesRemaining != 0 {
		t.Fatalf("oil remaining should clamp to 0: %+v", got)
	}

	got = ComputePmStatus(30000, intp(22000), intp(25000))
	if got.OilNextDue != 42000 || got.OilMilesRemaining != 12000 {
		t.Fatalf("oil: %+v", got)
	}
	if got.ChassisNextDue != 35000 || got.ChassisMilesRemaining != 5000 {
		t.Fatalf("chassis: %+v", got)
	}
}

func TestComputePmStatusNeverNegative(t *testing.T) {
	cases := []struct {
		odometer    int64
		lastOil     *int64
		lastChassis *int64
	}{
		{0, nil, nil},
		{19999, nil, nil},
		{20001, nil, nil},
		{100000, intp(10000), intp(10000)},
		{55555, intp(1), nil},
	}
	for _, c := range cases {
		got := ComputePmStatus(c.odometer, c.lastOil, c.lastChassis)
		if got.OilMilesRemaining < 0 || got.ChassisMilesRemaining < 0 {
			t.Fatalf("negative remaining for odometer=%d: %+v", c.odometer, got)
		}
	}
}
