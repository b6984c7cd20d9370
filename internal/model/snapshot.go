package model

// Snapshot is one persisted pair-analytics record. Metric fields are
// pointers: absent means the statistic could not be computed from the
// available data.
type Snapshot struct {
	ID          int64     `json:"id"`
	SymbolX     string    `json:"symbol_x"`
	SymbolY     string    `json:"symbol_y"`
	Timeframe   Timeframe `json:"timeframe"`
	HedgeRatio  *float64  `json:"hedge_ratio"`
	Spread      *float64  `json:"spread"`
	ZScore      *float64  `json:"z_score"`
	RollingCorr *float64  `json:"rolling_corr"`
	ADFStat     *float64  `json:"adf_stat"`
	PValue      *float64  `json:"p_value"`
	ComputedAt  int64     `json:"computed_at"` // ms
}
