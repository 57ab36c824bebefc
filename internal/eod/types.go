package eod

// tradeLine is one journal line as written by the tradelog package.
type tradeLine struct {
	RunID     string `json:"run_id"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Requested int    `json:"requested"`
	Confirmed int    `json:"confirmed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	TimedOut  bool   `json:"timed_out"`
	Skipped   bool   `json:"skipped"`
}

// aggRow aggregates one direction's executions for a day.
type aggRow struct {
	Direction  string
	Executions int
	Requested  int
	Confirmed  int
	TimedOut   int
	Skipped    int
	ElapsedMs  int64
	// Stake is the sum of amount * confirmed entries.
	Stake string
}
