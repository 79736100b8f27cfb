package entity

// PlayerStats is the durable per-user aggregate updated once per finished
// match. All counters are monotonically non-decreasing.
type PlayerStats struct {
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Draws      int `json:"draws"`
	TotalGames int `json:"totalGames"`
}

// LeaderboardEntry is one row of the wins leaderboard. Wins maps to the
// cumulative score, TotalGames to the cumulative subscore.
type LeaderboardEntry struct {
	UserID     string  `json:"userId"`
	Username   string  `json:"username"`
	Wins       int     `json:"wins"`
	TotalGames int     `json:"totalGames"`
	WinRate    float64 `json:"winRate"`
	Rank       int     `json:"rank"`
}
