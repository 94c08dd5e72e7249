package flowunits

// Flow is a flow rate expressed in the units shown on the dashboard.
type Flow struct {
	M3PerHour       float64 `json:"m3h"`
	LitersPerMinute float64 `json:"l_min"`
	LitersPerSecond float64 `json:"l_s"`
}

// NewFlow derives all units from m3/h.
func NewFlow(m3h float64) Flow {
	return Flow{
		M3PerHour:       m3h,
		LitersPerMinute: M3hToLitersPerMinute(m3h),
		LitersPerSecond: M3hToLitersPerSecond(m3h),
	}
}

// 1 m3 = 1000 L
func M3hToLitersPerMinute(m3h float64) float64 {
	return m3h * 1000 / 60
}

func M3hToLitersPerSecond(m3h float64) float64 {
	return m3h * 1000 / 3600
}
