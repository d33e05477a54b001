// Package stats keeps per-episode results. Every GroupSize records of the
// same level are folded into one aggregate record of the next level, so the
// history stays small however long training runs.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const GroupSize = 100

// GameRecord describes one episode (Level 0) or an aggregate of episodes.
type GameRecord struct {
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Level        int       `json:"level"`
	GamesCount   int       `json:"gamesCount"`
	AverageScore float64   `json:"averageScore"`
	MedianScore  float64   `json:"medianScore"`
	MaxScore     int       `json:"maxScore"`
	MinScore     int       `json:"minScore"`
	AverageSteps float64   `json:"averageSteps"`
	MaxSteps     int       `json:"maxSteps"`
}

// GameStats is safe for concurrent use.
type GameStats struct {
	mu    sync.RWMutex
	games []GameRecord
}

// NewGameStats returns empty statistics.
func NewGameStats() *GameStats {
	return &GameStats{}
}

// Summary is a point in time view of the statistics.
type Summary struct {
	Games        int     `json:"games"`
	AverageScore float64 `json:"average_score"`
	MedianScore  float64 `json:"median_score"`
	MaxScore     int     `json:"max_score"`
	AverageSteps float64 `json:"average_steps"`
}

// AddGame records a finished episode.
func (s *GameStats) AddGame(score, steps int, start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games = append(s.games, GameRecord{
		StartTime:    start,
		EndTime:      end,
		GamesCount:   1,
		AverageScore: float64(score),
		MedianScore:  float64(score),
		MaxScore:     score,
		MinScore:     score,
		AverageSteps: float64(steps),
		MaxSteps:     steps,
	})
	s.compress()
}

func (s *GameStats) compress() {
	defer func() {
		sort.SliceStable(s.games, func(i, j int) bool {
			if s.games[i].Level != s.games[j].Level {
				return s.games[i].Level > s.games[j].Level
			}
			return s.games[i].StartTime.Before(s.games[j].StartTime)
		})
	}()

	for level := 0; ; level++ {
		var same, rest []GameRecord
		for _, g := range s.games {
			if g.Level == level {
				same = append(same, g)
			} else {
				rest = append(rest, g)
			}
		}
		if len(same) < GroupSize {
			return
		}

		for len(same) >= GroupSize {
			rest = append(rest, merge(same[:GroupSize], level+1))
			same = same[GroupSize:]
		}
		s.games = append(rest, same...)
	}
}

func merge(group []GameRecord, level int) GameRecord {
	out := GameRecord{
		StartTime: group[0].StartTime,
		EndTime:   group[0].EndTime,
		Level:     level,
		MaxScore:  group[0].MaxScore,
		MinScore:  group[0].MinScore,
	}
	averages := make([]float64, len(group))
	steps := make([]float64, len(group))
	weights := make([]float64, len(group))
	for i, g := range group {
		averages[i] = g.AverageScore
		steps[i] = g.AverageSteps
		weights[i] = float64(g.GamesCount)
		out.GamesCount += g.GamesCount
		out.MaxScore = max(out.MaxScore, g.MaxScore)
		out.MinScore = min(out.MinScore, g.MinScore)
		out.MaxSteps = max(out.MaxSteps, g.MaxSteps)
		if g.StartTime.Before(out.StartTime) {
			out.StartTime = g.StartTime
		}
		if g.EndTime.After(out.EndTime) {
			out.EndTime = g.EndTime
		}
	}
	out.AverageScore = stat.Mean(averages, weights)
	out.AverageSteps = stat.Mean(steps, weights)
	out.MedianScore = median(group)
	return out
}

// median weighs each record's median by its game count.
func median(records []GameRecord) float64 {
	var scores []float64
	for _, g := range records {
		for i := 0; i < g.GamesCount; i++ {
			scores = append(scores, g.MedianScore)
		}
	}
	if len(scores) == 0 {
		return 0
	}
	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		return (scores[mid-1] + scores[mid]) / 2
	}
	return scores[mid]
}

// Records returns a copy of the stored records, aggregates first.
func (s *GameStats) Records() []GameRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]GameRecord(nil), s.games...)
}

// Summary aggregates every recorded episode.
func (s *GameStats) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.games) == 0 {
		return Summary{}
	}
	averages := make([]float64, len(s.games))
	steps := make([]float64, len(s.games))
	weights := make([]float64, len(s.games))
	maxes := make([]float64, len(s.games))
	for i, g := range s.games {
		averages[i] = g.AverageScore
		steps[i] = g.AverageSteps
		weights[i] = float64(g.GamesCount)
		maxes[i] = float64(g.MaxScore)
	}
	return Summary{
		Games:        int(floats.Sum(weights)),
		AverageScore: stat.Mean(averages, weights),
		MedianScore:  median(s.games),
		MaxScore:     int(floats.Max(maxes)),
		AverageSteps: stat.Mean(steps, weights),
	}
}

// Save writes the records as JSON, creating the directory if needed.
func (s *GameStats) Save(path string) error {
	s.mu.RLock()
	data, err := json.Marshal(s.games)
	s.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "failed to marshal stats data")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create stats directory")
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write stats file")
	}
	return nil
}

// Load replaces the records with the contents of path. A missing file
// leaves the stats empty.
func (s *GameStats) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read stats file")
	}
	var games []GameRecord
	if err := json.Unmarshal(data, &games); err != nil {
		return errors.Wrap(err, "failed to decode stats file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = games
	return nil
}
