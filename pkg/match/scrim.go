package match

import "github.com/bancho-go/bancho/pkg/protocol"

// Scrimming reports whether a best-of series is being tracked.
func (m *Match) Scrimming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrimming
}

// BestOf returns the series length, 0 when not scrimming.
func (m *Match) BestOf() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bestOf
}

// WinningPoints returns the points needed to take the series.
func (m *Match) WinningPoints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winningPoints
}

// StartScrim begins a best-of series. bestOf must be odd; starting while
// already scrimming is rejected.
func (m *Match) StartScrim(bestOf int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scrimming {
		return ErrScrimActive
	}
	if bestOf < 1 || bestOf%2 == 0 {
		return ErrBestOfEven
	}
	m.scrimming = true
	m.bestOf = bestOf
	m.winningPoints = bestOf/2 + 1
	m.winners = nil
	return nil
}

// StopScrim ends the series and clears its state. If the pp win
// condition was active it falls back to score, since pp is only legal
// mid-scrim.
func (m *Match) StopScrim() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scrimming {
		return ErrScrimOnly
	}
	m.scrimming = false
	m.bestOf = 0
	m.winningPoints = 0
	m.winners = nil
	if m.winCond == protocol.WinPP {
		m.winCond = protocol.WinScore
	}
	return nil
}

// AwardPoint logs a completed map's outcome: the winning player's id, or
// TieWinner for a tied map. Returns the winner's new point total and
// whether they have taken the series.
func (m *Match) AwardPoint(winnerID int32) (points int, tookSeries bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scrimming {
		return 0, false, ErrScrimOnly
	}
	m.winners = append(m.winners, winnerID)
	if winnerID == TieWinner {
		return 0, false, nil
	}
	for _, w := range m.winners {
		if w == winnerID {
			points++
		}
	}
	return points, points >= m.winningPoints, nil
}

// Rematch either restarts a finished series at the same winning-points
// total, or, while scrimming, rolls back exactly the most recently
// awarded point. Rolling back is rejected when no points have been
// awarded or when the most recent outcome was a tie.
func (m *Match) Rematch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scrimming {
		if m.winningPoints == 0 {
			return ErrScrimOnly
		}
		m.scrimming = true
		m.winners = nil
		return nil
	}

	if len(m.winners) == 0 {
		return ErrNoPointsAwarded
	}
	last := m.winners[len(m.winners)-1]
	if last == TieWinner {
		return ErrLastPointWasTie
	}
	m.winners = m.winners[:len(m.winners)-1]
	return nil
}

// Points returns each player's current scrim point total. Ties are
// logged but score no one.
func (m *Match) Points() map[int32]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int32]int)
	for _, w := range m.winners {
		if w != TieWinner {
			out[w]++
		}
	}
	return out
}

// EndScrimSeries marks a taken series as finished without discarding the
// winning-points total, so a later Rematch can restart it.
func (m *Match) EndScrimSeries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrimming = false
	m.winners = nil
	m.bestOf = 0
}
