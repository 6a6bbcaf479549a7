/**
 * Copyright 2025-present Green Moment
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package league owns the promotion ladder. The savings engine only
// feeds it finalized monthly totals; everything about ranks lives here.
package league

import (
	"fmt"

	"greenmoment-go/internal/common"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ladder is the ordered set of leagues with the monthly gram thresholds
// needed to leave each one. The last rung is terminal.
type Ladder struct {
	rungs []common.LeagueConfig
	index map[string]int
}

func NewLadder(rungs []common.LeagueConfig) (*Ladder, error) {
	if len(rungs) == 0 {
		return nil, fmt.Errorf("league ladder cannot be empty")
	}

	index := make(map[string]int, len(rungs))
	for i, rung := range rungs {
		if _, dup := index[rung.Name]; dup {
			return nil, fmt.Errorf("duplicate league %q in ladder", rung.Name)
		}
		index[rung.Name] = i
	}
	return &Ladder{rungs: rungs, index: index}, nil
}

// Lowest returns the entry league for new users.
func (l *Ladder) Lowest() string {
	return l.rungs[0].Name
}

// Next returns the league above current, or current at the top.
func (l *Ladder) Next(current string) string {
	i, ok := l.index[current]
	if !ok {
		return l.rungs[0].Name
	}
	if i >= len(l.rungs)-1 {
		return current
	}
	return l.rungs[i+1].Name
}

// Evaluate decides whether a finalized monthly total promotes the user
// out of their current league. Unknown leagues are treated as the lowest
// rung so a bad row heals upward rather than wedging.
func (l *Ladder) Evaluate(current string, monthTotal decimal.Decimal) (string, bool) {
	i, ok := l.index[current]
	if !ok {
		zap.L().Warn("Unknown league on user record, treating as lowest",
			zap.String("league", current))
		i = 0
		current = l.rungs[0].Name
	}
	if i >= len(l.rungs)-1 {
		return current, false
	}

	threshold := decimal.NewFromFloat(l.rungs[i].ThresholdG)
	if monthTotal.GreaterThanOrEqual(threshold) {
		return l.rungs[i+1].Name, true
	}
	return current, false
}
